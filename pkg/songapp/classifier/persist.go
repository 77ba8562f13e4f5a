package classifier

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"
)

const formatVersion = 1

type artifact struct {
	Version    int
	ID         string
	Labels     []string
	Extraction Extraction
	Accuracy   float64
	TrainedAt  time.Time
	Inputs     int
	Hidden     int
	W1         []float64
	B1         []float64
	W2         []float64
	B2         []float64
}

// Save writes the model as a versioned gob artifact.
func (m *Model) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating model dir: %w", err)
		}
	}

	a := artifact{
		Version:    formatVersion,
		ID:         m.ID,
		Labels:     m.Labels,
		Extraction: m.Extraction,
		Accuracy:   m.Accuracy,
		TrainedAt:  m.TrainedAt,
		Inputs:     m.InputDim(),
		Hidden:     m.HiddenUnits(),
		W1:         m.w1.RawMatrix().Data,
		B1:         m.b1,
		W2:         m.w2.RawMatrix().Data,
		B2:         m.b2,
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating model file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(a); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	return f.Close()
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model file: %w", err)
	}
	defer f.Close()

	var a artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	if a.Version != formatVersion {
		return nil, fmt.Errorf("model file version %d not supported (want %d)", a.Version, formatVersion)
	}

	classes := len(a.Labels)
	switch {
	case classes < 2:
		return nil, fmt.Errorf("model file is corrupt: %d labels", classes)
	case a.Inputs <= 0 || a.Hidden <= 0:
		return nil, fmt.Errorf("model file is corrupt: %dx%d network", a.Inputs, a.Hidden)
	case len(a.W1) != a.Inputs*a.Hidden || len(a.B1) != a.Hidden ||
		len(a.W2) != a.Hidden*classes || len(a.B2) != classes:
		return nil, fmt.Errorf("model file is corrupt: weight shapes do not match %d-%d-%d", a.Inputs, a.Hidden, classes)
	}

	return &Model{
		ID:         a.ID,
		Labels:     a.Labels,
		Extraction: a.Extraction,
		Accuracy:   a.Accuracy,
		TrainedAt:  a.TrainedAt,
		w1:         mat.NewDense(a.Inputs, a.Hidden, a.W1),
		b1:         a.B1,
		w2:         mat.NewDense(a.Hidden, classes, a.W2),
		b2:         a.B2,
	}, nil
}
