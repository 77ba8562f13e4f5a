// Package ingest builds the song catalogue from a folder of audio files with
// companion cover images.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mdobak/go-xerrors"
	"github.com/xon-patrick/SongApp/pkg/models"
	"github.com/xon-patrick/SongApp/pkg/songapp/audio"
	"github.com/xon-patrick/SongApp/pkg/songapp/features"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
	"github.com/xon-patrick/SongApp/pkg/utils"
)

// ImageExt is the extension of the cover image expected next to each audio file.
const ImageExt = ".png"

var ErrMissingImage = errors.New("cover image not found")

type Status int

const (
	StatusAdded Status = iota
	StatusExisting
	StatusSkippedNoImage
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusAdded:
		return "added"
	case StatusExisting:
		return "existing"
	case StatusSkippedNoImage:
		return "skipped"
	default:
		return "failed"
	}
}

type Store interface {
	Exists(identifier string) (bool, error)
	InsertIfAbsent(rec *models.SongRecord) (bool, error)
}

type Decoder interface {
	DecodeFile(ctx context.Context, path string) (*audio.Clip, error)
}

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type FileError struct {
	Path string
	Err  error
}

// Report lists what happened to every file of a batch, by identifier.
type Report struct {
	Added          []string
	Existing       []string
	SkippedNoImage []string
	Failed         []FileError
}

func (r *Report) Total() int {
	return len(r.Added) + len(r.Existing) + len(r.SkippedNoImage) + len(r.Failed)
}

type Ingester struct {
	Store    Store
	Decoder  Decoder
	Features features.Options
	Logger   Logger

	// OnFile, when set, is called once per file with its outcome.
	OnFile func(path string, status Status)
}

// Files lists the audio files of dir in name order.
func Files(dir string) ([]string, error) {
	return utils.ListAudioFiles(dir)
}

// IngestDir adds every audio file of dir. Per-file problems are collected in the
// report and never stop the batch; only a context error or an unreadable directory
// is returned.
func (in *Ingester) IngestDir(ctx context.Context, dir string) (*Report, error) {
	files, err := Files(dir)
	if err != nil {
		return nil, err
	}
	return in.IngestFiles(ctx, files)
}

func (in *Ingester) IngestFiles(ctx context.Context, files []string) (*Report, error) {
	report := &Report{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		id := filepath.Base(path)
		status, err := in.IngestFile(ctx, path)
		switch status {
		case StatusAdded:
			report.Added = append(report.Added, id)
		case StatusExisting:
			report.Existing = append(report.Existing, id)
		case StatusSkippedNoImage:
			report.SkippedNoImage = append(report.SkippedNoImage, id)
		default:
			report.Failed = append(report.Failed, FileError{Path: path, Err: err})
		}
		if in.OnFile != nil {
			in.OnFile(path, status)
		}
	}
	return report, nil
}

// IngestFile adds one audio file whose cover sits next to it with ImageExt.
func (in *Ingester) IngestFile(ctx context.Context, path string) (Status, error) {
	id := filepath.Base(path)

	imagePath := utils.SwapExt(path, ImageExt)
	if !utils.FileExists(imagePath) {
		in.warnf("Image for %s not found, skipping.", id)
		return StatusSkippedNoImage, ErrMissingImage
	}

	exists, err := in.Store.Exists(id)
	if err != nil {
		return StatusFailed, in.fail(id, err)
	}
	if exists {
		in.debugf("%s already in catalogue", id)
		return StatusExisting, nil
	}

	image, err := os.ReadFile(imagePath)
	if err != nil {
		return StatusFailed, in.fail(id, fmt.Errorf("reading cover: %w", err))
	}

	clip, err := in.Decoder.DecodeFile(ctx, path)
	if err != nil {
		return StatusFailed, in.fail(id, err)
	}

	opts := in.Features
	opts.SampleRate = clip.SampleRate
	vec, err := features.Extract(clip.Samples, clip.Channels, opts)
	if err != nil {
		return StatusFailed, in.fail(id, err)
	}

	songName, artist := storage.ParseSongName(id)
	if artist == nil {
		if tagged := taggedArtist(path); tagged != nil {
			in.debugf("%s: name carries no artist, ignoring tag artist %q", id, *tagged)
		}
	}
	rec := &models.SongRecord{
		Identifier: id,
		SongName:   songName,
		Artist:     artist,
		Features:   vec,
		Image:      image,
		SourcePath: path,
	}
	inserted, err := in.Store.InsertIfAbsent(rec)
	if err != nil {
		return StatusFailed, in.fail(id, err)
	}
	if !inserted {
		return StatusExisting, nil
	}

	in.infof("Added %s (%s, %.1fs)", id, songName, clip.Duration())
	return StatusAdded, nil
}

func (in *Ingester) fail(id string, err error) error {
	traced := xerrors.New(fmt.Errorf("ingesting %s: %w", id, err))
	if in.Logger != nil {
		in.Logger.Warnf("%v", traced)
	}
	return traced
}

func (in *Ingester) infof(format string, args ...any) {
	if in.Logger != nil {
		in.Logger.Infof(format, args...)
	}
}

func (in *Ingester) warnf(format string, args ...any) {
	if in.Logger != nil {
		in.Logger.Warnf(format, args...)
	}
}

func (in *Ingester) debugf(format string, args ...any) {
	if in.Logger != nil {
		in.Logger.Debugf(format, args...)
	}
}
