package config

import (
	"github.com/xon-patrick/SongApp/internal/capture"
	"github.com/xon-patrick/SongApp/pkg/songapp"
	"github.com/xon-patrick/SongApp/pkg/songapp/classifier"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
)

// ServiceOptions maps the settings onto facade options. extra is applied last.
func (c *Config) ServiceOptions(extra ...songapp.Option) []songapp.Option {
	training := classifier.DefaultConfig()
	training.HiddenUnits = c.Training.HiddenUnits
	training.MaxEpochs = c.Training.MaxEpochs
	training.Seed = c.Training.Seed

	// Validate has already rejected unknown keys.
	labelKey, _ := storage.ParseLabelKey(c.Training.LabelKey)

	opts := []songapp.Option{
		songapp.WithDBPath(c.Database.Path),
		songapp.WithModelPath(c.Training.ModelPath),
		songapp.WithScalerPath(c.Training.ScalerPath),
		songapp.WithFeatureLength(c.Features.Length),
		songapp.WithChunkSeconds(c.Training.ChunkSeconds),
		songapp.WithAugment(c.Training.Augment),
		songapp.WithLabelKey(labelKey),
		songapp.WithTraining(training),
		songapp.WithCacheDir(c.Training.CacheDir),
		songapp.WithFFmpeg(c.Songs.UseFFmpeg, c.Songs.TempDir),
	}
	return append(opts, extra...)
}

// CaptureSettings returns the input device settings for capture.Open.
func (c *Config) CaptureSettings() capture.Config {
	return capture.Config{
		SampleRate: c.Capture.SampleRate,
		Channels:   c.Capture.Channels,
		FrameSize:  c.Capture.FrameSize,
		DeviceID:   c.Capture.Device,
	}
}
