package songapp

import (
	"errors"
	"fmt"

	"github.com/xon-patrick/SongApp/pkg/songapp/classifier"
	"github.com/xon-patrick/SongApp/pkg/songapp/ingest"
)

var (
	ErrModelMissing  = errors.New("classifier model not found; run training first")
	ErrScalerMissing = errors.New("model expects normalised features but the scaler file is missing")
)

// IngestReport is the outcome of a catalogue build.
type IngestReport = ingest.Report

// TrainReport summarises a training run and where its artifacts went.
type TrainReport struct {
	classifier.Report
	Examples   int // rows after augmentation
	Songs      int
	Labels     int
	ModelID    string
	ModelPath  string
	ScalerPath string // empty when no scaler was fitted
}

func (r *TrainReport) String() string {
	return fmt.Sprintf("Model accuracy: %.2f%%", r.Accuracy*100)
}

// ModelInfo describes the loaded classifier.
type ModelInfo struct {
	ID           string   `json:"id"`
	Labels       []string `json:"labels"`
	Accuracy     float64  `json:"accuracy"`
	FeatureLen   int      `json:"feature_length"`
	ChunkSeconds float64  `json:"chunk_seconds,omitempty"`
	Normalized   bool     `json:"normalized"`
	LabelKey     string   `json:"label_key"`
}
