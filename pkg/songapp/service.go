package songapp

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xon-patrick/SongApp/internal/featurecache"
	"github.com/xon-patrick/SongApp/pkg/logger"
	"github.com/xon-patrick/SongApp/pkg/models"
	"github.com/xon-patrick/SongApp/pkg/songapp/audio"
	"github.com/xon-patrick/SongApp/pkg/songapp/augment"
	"github.com/xon-patrick/SongApp/pkg/songapp/classifier"
	"github.com/xon-patrick/SongApp/pkg/songapp/dataset"
	"github.com/xon-patrick/SongApp/pkg/songapp/features"
	"github.com/xon-patrick/SongApp/pkg/songapp/ingest"
	"github.com/xon-patrick/SongApp/pkg/songapp/scaler"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
)

// Service manages the song catalogue and trains the classifier. It needs no model.
type Service struct {
	storage Storage
	log     Logger
	config  *Config
	decoder audio.Decoder
}

func NewService(opts ...Option) (*Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.FeatureLength <= 0 {
		cfg.FeatureLength = features.DefaultFeatureLength
	}
	if cfg.LabelKey == "" {
		cfg.LabelKey = storage.LabelSongName
	}

	var store Storage
	if cfg.Storage != nil {
		store = cfg.Storage
	} else {
		var err error
		store, err = NewSQLStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	if err := store.InitializeSchema(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Service{
		storage: store,
		log:     cfg.Logger,
		config:  cfg,
		decoder: audio.Decoder{UseFFmpeg: cfg.UseFFmpeg, TempDir: cfg.TempDir},
	}, nil
}

// Ingest adds every audio file of dir that has a cover image next to it.
func (s *Service) Ingest(ctx context.Context, dir string) (*IngestReport, error) {
	s.log.Infof("Ingesting songs from %s", dir)

	in := &ingest.Ingester{
		Store:    s.storage,
		Decoder:  s.decoder,
		Features: features.Options{FeatureLength: s.config.FeatureLength},
		Logger:   s.log,
		OnFile:   s.config.OnIngestFile,
	}
	report, err := in.IngestDir(ctx, dir)
	if err != nil {
		return report, fmt.Errorf("ingesting %s: %w", dir, err)
	}

	s.log.Infof("Ingest done: %d added, %d already stored, %d without image, %d failed",
		len(report.Added), len(report.Existing), len(report.SkippedNoImage), len(report.Failed))
	for _, f := range report.Failed {
		s.log.Debugf("%s: %+v", f.Path, f.Err)
	}
	return report, nil
}

// Train builds the dataset from the catalogue, fits the classifier (and the scaler
// when chunking is on) and writes the artifacts.
func (s *Service) Train(ctx context.Context) (*TrainReport, error) {
	cfg := s.config
	chunked := cfg.ChunkSeconds > 0

	builder := &dataset.Builder{
		Catalogue:     s.storage,
		LabelKey:      cfg.LabelKey,
		FeatureLength: cfg.FeatureLength,
		ChunkSeconds:  cfg.ChunkSeconds,
		Decoder:       s.decoder,
		Logger:        s.log,
	}
	if cfg.OnDatasetSong != nil {
		builder.OnRecord = func(rec *models.SongRecord) { cfg.OnDatasetSong(rec.Identifier) }
	}

	if chunked && cfg.CacheDir != "" {
		cache, err := featurecache.Open(cfg.CacheDir)
		if err != nil {
			s.log.Warnf("feature cache disabled: %v", err)
		} else {
			defer cache.Close()
			builder.Cache = cache
			builder.KeyFunc = featurecache.Key
		}
	}

	s.log.Infof("Building dataset (label=%s, chunk=%.1fs)", cfg.LabelKey, cfg.ChunkSeconds)
	data, err := builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("building dataset: %w", err)
	}
	songs := data.Len()
	if chunked {
		songs, err = s.countSongs()
		if err != nil {
			return nil, err
		}
	}

	x, y := data.Features, data.Labels
	if cfg.Augment {
		seed := cfg.Training.Seed
		x, y, err = augment.Augment(x, y, rand.NewPCG(seed, seed))
		if err != nil {
			return nil, fmt.Errorf("augmenting dataset: %w", err)
		}
		s.log.Debugf("Augmented %d examples to %d", data.Len(), len(y))
	}

	var norm *scaler.Model
	if chunked {
		norm, err = scaler.Fit(x)
		if err != nil {
			return nil, fmt.Errorf("fitting scaler: %w", err)
		}
		x, err = norm.TransformBatch(x)
		if err != nil {
			return nil, fmt.Errorf("scaling dataset: %w", err)
		}
	}

	tcfg := cfg.Training
	tcfg.Extraction = classifier.Extraction{
		FeatureLength:      cfg.FeatureLength,
		MaxDurationSeconds: cfg.ChunkSeconds,
		Normalized:         chunked,
		LabelKey:           string(cfg.LabelKey),
	}
	if cfg.OnEpoch != nil {
		tcfg.OnEpoch = cfg.OnEpoch
	}

	s.log.Infof("Training on %d examples", len(y))
	model, rep, err := classifier.Train(x, y, tcfg)
	if err != nil {
		return nil, fmt.Errorf("training classifier: %w", err)
	}

	if err := ensureDir(cfg.ModelPath); err != nil {
		return nil, err
	}
	if err := model.Save(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("saving model: %w", err)
	}

	report := &TrainReport{
		Report:    *rep,
		Examples:  len(y),
		Songs:     songs,
		Labels:    len(model.Labels),
		ModelID:   model.ID,
		ModelPath: cfg.ModelPath,
	}

	if norm != nil {
		if err := ensureDir(cfg.ScalerPath); err != nil {
			return nil, err
		}
		if err := norm.Save(cfg.ScalerPath); err != nil {
			return nil, fmt.Errorf("saving scaler: %w", err)
		}
		report.ScalerPath = cfg.ScalerPath
	}

	s.log.Infof("%s", report)
	return report, nil
}

func (s *Service) countSongs() (int, error) {
	n, err := s.storage.Count()
	if err != nil {
		return 0, fmt.Errorf("counting songs: %w", err)
	}
	return int(n), nil
}

func (s *Service) ListSongs() ([]models.SongSummary, error) {
	records, err := s.storage.ListSongs()
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}

	out := make([]models.SongSummary, 0, len(records))
	for i := range records {
		out = append(out, summarize(&records[i]))
	}
	return out, nil
}

// GetSong looks a song up by identifier, or by numeric ID when ref parses as one.
func (s *Service) GetSong(ref string) (*models.SongRecord, error) {
	rec, err := s.storage.LookupByIdentifier(ref)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to get song: %w", err)
	}

	id, convErr := strconv.ParseUint(ref, 10, 64)
	if convErr != nil {
		return nil, err
	}
	records, listErr := s.storage.ListSongs()
	if listErr != nil {
		return nil, fmt.Errorf("failed to get song: %w", listErr)
	}
	for i := range records {
		if uint64(records[i].ID) == id {
			return &records[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Service) DeleteSong(identifier string) error {
	if err := s.storage.DeleteByIdentifier(identifier); err != nil {
		return fmt.Errorf("failed to delete song %s: %w", identifier, err)
	}
	s.log.Infof("Deleted song %s", identifier)
	return nil
}

func (s *Service) Config() Config {
	return *s.config
}

func (s *Service) Close() error {
	return s.storage.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
