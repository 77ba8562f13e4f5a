package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xon-patrick/SongApp/pkg/songapp"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
)

func apply(opts []songapp.Option) songapp.Config {
	var c songapp.Config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func TestServiceOptions(t *testing.T) {
	cfg := Default()
	cfg.Database.Path = "catalogue.sqlite3"
	cfg.Training.LabelKey = "identifier"
	cfg.Training.ChunkSeconds = 10
	cfg.Training.HiddenUnits = 32
	cfg.Training.Seed = 7
	cfg.Songs.UseFFmpeg = false

	got := apply(cfg.ServiceOptions(songapp.WithFeatureLength(64)))
	assert.Equal(t, "catalogue.sqlite3", got.DBPath)
	assert.Equal(t, cfg.Training.ModelPath, got.ModelPath)
	assert.Equal(t, cfg.Training.ScalerPath, got.ScalerPath)
	assert.Equal(t, storage.LabelIdentifier, got.LabelKey)
	assert.Equal(t, 10.0, got.ChunkSeconds)
	assert.Equal(t, 32, got.Training.HiddenUnits)
	assert.Equal(t, uint64(7), got.Training.Seed)
	assert.Equal(t, cfg.Training.CacheDir, got.CacheDir)
	assert.False(t, got.UseFFmpeg)
	assert.Equal(t, 64, got.FeatureLength, "extra options win")
}

func TestCaptureSettings(t *testing.T) {
	cfg := Default()
	cfg.Capture.Device = 3
	got := cfg.CaptureSettings()
	assert.Equal(t, 3, got.DeviceID)
	assert.Equal(t, cfg.Capture.SampleRate, got.SampleRate)
	assert.Equal(t, cfg.Capture.Channels, got.Channels)
	assert.Equal(t, cfg.Capture.FrameSize, got.FrameSize)
}
