// Package config loads SongApp settings from YAML, .env and SONGAPP_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/xon-patrick/SongApp/pkg/logger"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "SONGAPP_"

type Config struct {
	LogLevel string         `yaml:"log_level"` // debug, info, warn, error
	Database DatabaseConfig `yaml:"database"`
	Songs    SongsConfig    `yaml:"songs"`
	Features FeatureConfig  `yaml:"features"`
	Training TrainingConfig `yaml:"training"`
	Capture  CaptureConfig  `yaml:"capture"`
	Server   ServerConfig   `yaml:"server"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite file, or a postgres:// DSN
}

type SongsConfig struct {
	Dir       string `yaml:"dir"`        // Folder of .wav/.mp3 files with .png covers
	UseFFmpeg bool   `yaml:"use_ffmpeg"` // Convert other formats with ffmpeg
	TempDir   string `yaml:"temp_dir"`
}

type FeatureConfig struct {
	Length int `yaml:"length"` // Spectrum bins kept per vector
}

type TrainingConfig struct {
	ModelPath    string  `yaml:"model_path"`
	ScalerPath   string  `yaml:"scaler_path"`
	ChunkSeconds float64 `yaml:"chunk_seconds"` // > 0 trains on whole chunks with a scaler
	Augment      bool    `yaml:"augment"`       // Noisy and smoothed copies per example
	LabelKey     string  `yaml:"label_key"`     // song_name or identifier
	HiddenUnits  int     `yaml:"hidden_units"`
	MaxEpochs    int     `yaml:"max_epochs"`
	Seed         uint64  `yaml:"seed"`
	CacheDir     string  `yaml:"cache_dir"` // Chunk feature cache, empty disables it
}

type CaptureConfig struct {
	Device           int           `yaml:"device"` // -1 for the default input
	SampleRate       int           `yaml:"sample_rate"`
	Channels         int           `yaml:"channels"`
	FrameSize        int           `yaml:"frame_size"`
	ListenSeconds    float64       `yaml:"listen_seconds"`
	SpectrumInterval time.Duration `yaml:"spectrum_interval"`
	HannWindow       bool          `yaml:"hann_window"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	Spectrum bool   `yaml:"spectrum"` // Serve /ws/spectrum from the capture device
	Live     bool   `yaml:"live"`     // Allow /api/identify/live
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Database: DatabaseConfig{Path: storage.DefaultDBFile},
		Songs:    SongsConfig{Dir: "songs", UseFFmpeg: true},
		Features: FeatureConfig{Length: 1024},
		Training: TrainingConfig{
			ModelPath:   "models/classifier.gob",
			ScalerPath:  "models/scaler.gob",
			Augment:     true,
			LabelKey:    string(storage.LabelSongName),
			HiddenUnits: 100,
			MaxEpochs:   500,
			Seed:        42,
			CacheDir:    ".cache/features",
		},
		Capture: CaptureConfig{
			Device:           -1,
			SampleRate:       44100,
			Channels:         1,
			FrameSize:        4096,
			ListenSeconds:    10,
			SpectrumInterval: 10 * time.Millisecond,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// LoadConfig reads path (or config.yaml when path is empty and it exists) over the
// defaults, loads .env into the environment without overriding set variables, then
// applies SONGAPP_* overrides and validates.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("ignoring .env: %v", err)
	}

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("DB_PATH", &c.Database.Path)
	str("SONGS_DIR", &c.Songs.Dir)
	str("MODEL_PATH", &c.Training.ModelPath)
	str("SCALER_PATH", &c.Training.ScalerPath)
	str("LABEL_KEY", &c.Training.LabelKey)
	str("CACHE_DIR", &c.Training.CacheDir)
	str("SERVER_ADDR", &c.Server.Addr)

	if v := os.Getenv(EnvPrefix + "CHUNK_SECONDS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sCHUNK_SECONDS: %w", EnvPrefix, err)
		}
		c.Training.ChunkSeconds = f
	}
	if v := os.Getenv(EnvPrefix + "FEATURE_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sFEATURE_LENGTH: %w", EnvPrefix, err)
		}
		c.Features.Length = n
	}
	if v := os.Getenv(EnvPrefix + "CAPTURE_DEVICE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCAPTURE_DEVICE: %w", EnvPrefix, err)
		}
		c.Capture.Device = n
	}
	if v := os.Getenv(EnvPrefix + "AUGMENT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sAUGMENT: %w", EnvPrefix, err)
		}
		c.Training.Augment = b
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path must be set"))
	}
	if c.Features.Length <= 0 {
		errs = append(errs, fmt.Errorf("features.length must be positive, got %d", c.Features.Length))
	}
	if c.Training.ModelPath == "" {
		errs = append(errs, errors.New("training.model_path must be set"))
	}
	if c.Training.ChunkSeconds < 0 {
		errs = append(errs, fmt.Errorf("training.chunk_seconds must not be negative, got %g", c.Training.ChunkSeconds))
	}
	if _, err := storage.ParseLabelKey(c.Training.LabelKey); err != nil {
		errs = append(errs, fmt.Errorf("training.label_key: %w", err))
	}
	if c.Capture.SampleRate <= 0 || c.Capture.Channels <= 0 || c.Capture.FrameSize <= 0 {
		errs = append(errs, errors.New("capture.sample_rate, channels and frame_size must be positive"))
	}
	if c.Capture.FrameSize&(c.Capture.FrameSize-1) != 0 {
		errs = append(errs, fmt.Errorf("capture.frame_size must be a power of two, got %d", c.Capture.FrameSize))
	}
	if c.Capture.ListenSeconds <= 0 {
		errs = append(errs, errors.New("capture.listen_seconds must be positive"))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level.
func (c *Config) Level() logger.LogLevel {
	lvl, _ := logger.ParseLevel(c.LogLevel)
	return lvl
}
