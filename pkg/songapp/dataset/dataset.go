// Package dataset assembles labelled feature matrices from the song catalogue.
package dataset

import (
	"context"
	"errors"
	"fmt"

	"github.com/xon-patrick/SongApp/pkg/models"
	"github.com/xon-patrick/SongApp/pkg/songapp/audio"
	"github.com/xon-patrick/SongApp/pkg/songapp/features"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
)

var ErrEmpty = errors.New("dataset: catalogue holds no songs")

// Labeled pairs feature vectors with labels index by index.
type Labeled struct {
	Features [][]float64
	Labels   []string
}

func (d *Labeled) Len() int { return len(d.Labels) }

// Catalogue lists stored song records.
type Catalogue interface {
	ListSongs() ([]models.SongRecord, error)
}

// Decoder loads a song file for chunked extraction.
type Decoder interface {
	DecodeFile(ctx context.Context, path string) (*audio.Clip, error)
}

// Cache stores per-file chunk matrices. Keys come from KeyFunc.
type Cache interface {
	Get(key []byte) ([][]float64, bool, error)
	Put(key []byte, rows [][]float64) error
}

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type Builder struct {
	Catalogue     Catalogue
	LabelKey      storage.LabelKey
	FeatureLength int

	// ChunkSeconds > 0 re-reads each source file and emits one example per whole chunk.
	ChunkSeconds float64
	Decoder      Decoder
	Cache        Cache
	KeyFunc      func(path string, featureLength int, chunkSeconds float64) ([]byte, error)
	Logger       Logger

	// OnRecord, when set, is called after each catalogue record is processed.
	OnRecord func(rec *models.SongRecord)
}

// Build returns one example per record (stored features), or one per chunk when
// chunking is enabled. Records whose audio cannot be read are skipped with a warning.
func (b *Builder) Build(ctx context.Context) (*Labeled, error) {
	records, err := b.Catalogue.ListSongs()
	if err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	length := b.FeatureLength
	if length <= 0 {
		length = features.DefaultFeatureLength
	}

	out := &Labeled{}
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &records[i]
		label := Label(rec, b.LabelKey)

		if b.ChunkSeconds <= 0 {
			out.Features = append(out.Features, features.Fit(rec.Features, length))
			out.Labels = append(out.Labels, label)
		} else {
			rows, err := b.chunkFeatures(ctx, rec, length)
			if err != nil {
				b.warnf("skipping %s: %v", rec.Identifier, err)
			}
			for _, row := range rows {
				out.Features = append(out.Features, row)
				out.Labels = append(out.Labels, label)
			}
		}

		if b.OnRecord != nil {
			b.OnRecord(rec)
		}
	}
	return out, nil
}

func (b *Builder) chunkFeatures(ctx context.Context, rec *models.SongRecord, length int) ([][]float64, error) {
	if rec.SourcePath == "" {
		return nil, errors.New("record has no source path")
	}
	if b.Decoder == nil {
		return nil, errors.New("no decoder configured for chunked extraction")
	}

	var key []byte
	if b.Cache != nil && b.KeyFunc != nil {
		k, err := b.KeyFunc(rec.SourcePath, length, b.ChunkSeconds)
		if err != nil {
			return nil, fmt.Errorf("cache key: %w", err)
		}
		key = k
		if rows, ok, err := b.Cache.Get(key); err != nil {
			b.warnf("feature cache read for %s: %v", rec.Identifier, err)
		} else if ok {
			b.debugf("feature cache hit for %s (%d chunks)", rec.Identifier, len(rows))
			return rows, nil
		}
	}

	clip, err := b.Decoder.DecodeFile(ctx, rec.SourcePath)
	if err != nil {
		return nil, err
	}
	rows, err := ChunkFeatures(clip, b.ChunkSeconds, length)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		b.warnf("%s is shorter than one %.1fs chunk", rec.Identifier, b.ChunkSeconds)
	}

	if key != nil {
		if err := b.Cache.Put(key, rows); err != nil {
			b.warnf("feature cache write for %s: %v", rec.Identifier, err)
		}
	}
	return rows, nil
}

// ChunkFeatures down-mixes a clip, cuts it into whole chunks and extracts one vector per chunk.
func ChunkFeatures(clip *audio.Clip, seconds float64, length int) ([][]float64, error) {
	mono := features.Downmix(clip.Samples, clip.Channels)
	chunks := features.Chunk(mono, clip.SampleRate, seconds)
	rows := make([][]float64, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := features.Extract(chunk, 1, features.Options{FeatureLength: length})
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		rows = append(rows, vec)
	}
	return rows, nil
}

// Label returns the training label of a record under the given key.
func Label(rec *models.SongRecord, key storage.LabelKey) string {
	if key == storage.LabelIdentifier {
		return rec.Identifier
	}
	return rec.SongName
}

func (b *Builder) warnf(format string, args ...any) {
	if b.Logger != nil {
		b.Logger.Warnf(format, args...)
	}
}

func (b *Builder) debugf(format string, args ...any) {
	if b.Logger != nil {
		b.Logger.Debugf(format, args...)
	}
}
