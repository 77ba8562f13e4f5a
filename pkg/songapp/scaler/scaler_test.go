package scaler

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitTransformStandardises(t *testing.T) {
	matrix := [][]float64{
		{1, 10, 5},
		{2, 20, 5},
		{3, 30, 5},
		{6, 60, 5},
	}
	m, err := Fit(matrix)
	require.NoError(t, err)

	out, err := m.TransformBatch(matrix)
	require.NoError(t, err)

	for j := 0; j < 2; j++ {
		var sum, sq float64
		for _, row := range out {
			sum += row[j]
			sq += row[j] * row[j]
		}
		n := float64(len(out))
		assert.InDelta(t, 0, sum/n, 1e-12, "column %d mean", j)
		assert.InDelta(t, 1, math.Sqrt(sq/n), 1e-12, "column %d std", j)
	}

	// Constant column: scale 1, values centred to zero.
	assert.Equal(t, 1.0, m.scale[2])
	for _, row := range out {
		assert.Equal(t, 0.0, row[2])
	}
}

func TestFitUsesPopulationDeviation(t *testing.T) {
	m, err := Fit([][]float64{{0}, {2}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, m.mean)
	assert.InDelta(t, 1.0, m.scale[0], 1e-12)
}

func TestFitSingleRow(t *testing.T) {
	m, err := Fit([][]float64{{4, 8}})
	require.NoError(t, err)
	out, err := m.Transform([]float64{4, 9})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, out)
}

func TestFitErrors(t *testing.T) {
	_, err := Fit(nil)
	assert.ErrorIs(t, err, ErrEmptyMatrix)

	_, err = Fit([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestTransformDimensionMismatch(t *testing.T) {
	m, err := Fit([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	_, err = m.Transform([]float64{1})
	assert.Error(t, err)
	_, err = m.TransformBatch([][]float64{{1, 2}, {1, 2, 3}})
	assert.Error(t, err)
}

func TestTransformReturnsNewSlice(t *testing.T) {
	m, err := Fit([][]float64{{1}, {3}})
	require.NoError(t, err)
	in := []float64{3}
	out, err := m.Transform(in)
	require.NoError(t, err)
	out[0] = 100
	assert.Equal(t, []float64{3}, in)
}

func TestSaveLoad(t *testing.T) {
	m, err := Fit([][]float64{{1, 100}, {3, 300}, {5, 200}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "scaler.gob")
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.mean, loaded.mean)
	assert.Equal(t, m.scale, loaded.scale)

	a, err := m.Transform([]float64{2, 250})
	require.NoError(t, err)
	b, err := loaded.Transform([]float64{2, 250})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.gob"))
	assert.Error(t, err)
}
