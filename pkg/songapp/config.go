package songapp

import (
	"github.com/xon-patrick/SongApp/pkg/songapp/classifier"
	"github.com/xon-patrick/SongApp/pkg/songapp/features"
	"github.com/xon-patrick/SongApp/pkg/songapp/inference"
	"github.com/xon-patrick/SongApp/pkg/songapp/ingest"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
)

type Config struct {
	DBPath     string
	ModelPath  string
	ScalerPath string

	FeatureLength int
	ChunkSeconds  float64 // > 0 trains on whole chunks and fits a scaler
	Augment       bool
	LabelKey      storage.LabelKey
	Training      classifier.Config
	CacheDir      string // chunk feature cache; empty disables it

	UseFFmpeg bool
	TempDir   string

	Logger  Logger
	Storage Storage

	OpenCapture   func() (inference.Source, error)
	StateObserver inference.StateObserver
	OnIngestFile  func(path string, status ingest.Status)
	OnDatasetSong func(identifier string)
	OnEpoch       func(epoch int, loss float64)
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithModelPath(path string) Option {
	return func(c *Config) {
		c.ModelPath = path
	}
}

func WithScalerPath(path string) Option {
	return func(c *Config) {
		c.ScalerPath = path
	}
}

func WithFeatureLength(n int) Option {
	return func(c *Config) {
		c.FeatureLength = n
	}
}

// WithChunkSeconds switches training to fixed-length chunks of the source audio.
func WithChunkSeconds(seconds float64) Option {
	return func(c *Config) {
		c.ChunkSeconds = seconds
	}
}

func WithAugment(enabled bool) Option {
	return func(c *Config) {
		c.Augment = enabled
	}
}

func WithLabelKey(key storage.LabelKey) Option {
	return func(c *Config) {
		c.LabelKey = key
	}
}

// WithTraining overrides network and optimiser settings. Non-positive sizes and
// rates fall back to classifier defaults. Alpha and Seed are used as given, so a
// zero Alpha turns the L2 penalty off.
func WithTraining(cfg classifier.Config) Option {
	return func(c *Config) {
		c.Training = cfg
	}
}

func WithCacheDir(dir string) Option {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

func WithFFmpeg(enabled bool, tempDir string) Option {
	return func(c *Config) {
		c.UseFFmpeg = enabled
		c.TempDir = tempDir
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithCapture sets how the recognizer opens its live input.
func WithCapture(open func() (inference.Source, error)) Option {
	return func(c *Config) {
		c.OpenCapture = open
	}
}

func WithStateObserver(obs inference.StateObserver) Option {
	return func(c *Config) {
		c.StateObserver = obs
	}
}

func WithIngestObserver(fn func(path string, status ingest.Status)) Option {
	return func(c *Config) {
		c.OnIngestFile = fn
	}
}

func WithDatasetObserver(fn func(identifier string)) Option {
	return func(c *Config) {
		c.OnDatasetSong = fn
	}
}

func WithEpochObserver(fn func(epoch int, loss float64)) Option {
	return func(c *Config) {
		c.OnEpoch = fn
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:        storage.DefaultDBFile,
		ModelPath:     "models/classifier.gob",
		ScalerPath:    "models/scaler.gob",
		FeatureLength: features.DefaultFeatureLength,
		Augment:       true,
		LabelKey:      storage.LabelSongName,
		Training:      classifier.DefaultConfig(),
		UseFFmpeg:     true,
	}
}
