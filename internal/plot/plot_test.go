package plot

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xon-patrick/SongApp/pkg/songapp/audio"
)

func decodePNG(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestFeatureBars(t *testing.T) {
	vec := make([]float64, 1024)
	for i := range vec {
		vec[i] = float64(i % 50)
	}
	path := filepath.Join(t.TempDir(), "out", "bars.png")
	require.NoError(t, FeatureBars(vec, path, Size{Width: 300, Height: 100}))

	w, h := decodePNG(t, path)
	assert.Equal(t, 300, w)
	assert.Equal(t, 100, h)
}

func TestFeatureBarsRejectsEmpty(t *testing.T) {
	assert.Error(t, FeatureBars(nil, filepath.Join(t.TempDir(), "x.png"), Size{}))
}

func TestSpectrogram(t *testing.T) {
	rate := 8000
	samples := make([]float64, rate)
	for i := range samples {
		samples[i] = 10000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
	}
	path := filepath.Join(t.TempDir(), "spec.png")
	require.NoError(t, Spectrogram(&audio.Clip{Samples: samples, Channels: 1, SampleRate: rate}, path, Size{Width: 256, Height: 128}))

	w, h := decodePNG(t, path)
	assert.Equal(t, 256, w)
	assert.Equal(t, 128, h)
}

func TestSpectrogramRejectsEmpty(t *testing.T) {
	err := Spectrogram(&audio.Clip{Channels: 1, SampleRate: 8000}, filepath.Join(t.TempDir(), "x.png"), Size{})
	assert.Error(t, err)
}
