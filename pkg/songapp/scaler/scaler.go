// Package scaler standardises feature vectors to zero mean and unit variance per dimension.
package scaler

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"
)

const formatVersion = 1

var ErrEmptyMatrix = errors.New("scaler: cannot fit on an empty matrix")

// Model holds per-dimension means and scales. It is read-only after Fit or Load.
type Model struct {
	mean  []float64
	scale []float64
}

// Fit computes column means and population standard deviations of matrix.
// A column with zero deviation gets scale 1 so it transforms to zeros.
func Fit(matrix [][]float64) (*Model, error) {
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return nil, ErrEmptyMatrix
	}
	dim := len(matrix[0])
	for i, row := range matrix {
		if len(row) != dim {
			return nil, fmt.Errorf("scaler: row %d has %d values, want %d", i, len(row), dim)
		}
	}

	n := float64(len(matrix))
	col := make([]float64, len(matrix))
	m := &Model{mean: make([]float64, dim), scale: make([]float64, dim)}
	for j := 0; j < dim; j++ {
		for i, row := range matrix {
			col[i] = row[j]
		}
		mean, variance := stat.MeanVariance(col, nil)
		if len(matrix) < 2 {
			variance = 0
		} else {
			variance *= (n - 1) / n
		}
		std := math.Sqrt(variance)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		m.mean[j] = mean
		m.scale[j] = std
	}
	return m, nil
}

func (m *Model) Dim() int { return len(m.mean) }

func (m *Model) Transform(vec []float64) ([]float64, error) {
	if len(vec) != len(m.mean) {
		return nil, fmt.Errorf("scaler: vector has %d values, model expects %d", len(vec), len(m.mean))
	}
	out := make([]float64, len(vec))
	for j, v := range vec {
		out[j] = (v - m.mean[j]) / m.scale[j]
	}
	return out, nil
}

func (m *Model) TransformBatch(matrix [][]float64) ([][]float64, error) {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		t, err := m.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

type artifact struct {
	Version int
	Mean    []float64
	Scale   []float64
}

func (m *Model) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating scaler dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating scaler file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(artifact{Version: formatVersion, Mean: m.mean, Scale: m.scale}); err != nil {
		return fmt.Errorf("encoding scaler: %w", err)
	}
	return f.Close()
}

func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scaler file: %w", err)
	}
	defer f.Close()

	var a artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding scaler: %w", err)
	}
	if a.Version != formatVersion {
		return nil, fmt.Errorf("scaler file version %d not supported (want %d)", a.Version, formatVersion)
	}
	if len(a.Mean) == 0 || len(a.Mean) != len(a.Scale) {
		return nil, fmt.Errorf("scaler file is corrupt: %d means, %d scales", len(a.Mean), len(a.Scale))
	}
	return &Model{mean: a.Mean, scale: a.Scale}, nil
}
