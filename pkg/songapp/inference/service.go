// Package inference runs the query-time pipeline: features, normalisation,
// classification and catalogue lookup.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/xon-patrick/SongApp/pkg/models"
	"github.com/xon-patrick/SongApp/pkg/songapp/audio"
	"github.com/xon-patrick/SongApp/pkg/songapp/classifier"
	"github.com/xon-patrick/SongApp/pkg/songapp/features"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
)

var ErrCaptureClosed = errors.New("live capture is not open")

type Classifier interface {
	Predict(vec []float64) (classifier.Prediction, error)
}

type Normalizer interface {
	Transform(vec []float64) ([]float64, error)
}

type Catalogue interface {
	LookupByLabel(label string, key storage.LabelKey) (*models.SongRecord, error)
}

type Decoder interface {
	DecodeFile(ctx context.Context, path string) (*audio.Clip, error)
}

// Source is an exclusive live audio input producing interleaved frames on demand.
type Source interface {
	SampleRate() int
	Channels() int
	Start() error
	Read() ([]float64, error)
	Stop() error
	Close() error
}

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type Config struct {
	Classifier Classifier
	Normalizer Normalizer // nil passes vectors through
	Catalogue  Catalogue
	LabelKey   storage.LabelKey
	Decoder    Decoder
	Features   features.Options

	// OpenCapture creates the live source on Open. Nil disables IdentifyLive.
	OpenCapture func() (Source, error)
	Observer    StateObserver
	Logger      Logger
}

type Service struct {
	cfg Config

	captureMu sync.Mutex
	capture   Source
}

func New(cfg Config) (*Service, error) {
	if cfg.Classifier == nil {
		return nil, errors.New("inference: classifier is required")
	}
	if cfg.Catalogue == nil {
		return nil, errors.New("inference: catalogue is required")
	}
	if cfg.Decoder == nil {
		cfg.Decoder = audio.Decoder{}
	}
	return &Service{cfg: cfg}, nil
}

// Open acquires the live capture source, if one is configured.
func (s *Service) Open() error {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	if s.capture != nil || s.cfg.OpenCapture == nil {
		return nil
	}
	src, err := s.cfg.OpenCapture()
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	s.capture = src
	return nil
}

// Close releases the capture source. It waits for a running IdentifyLive.
func (s *Service) Close() error {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	if s.capture == nil {
		return nil
	}
	err := s.capture.Close()
	s.capture = nil
	return err
}

// IdentifyFile decodes path and identifies it. Failures become a Failed result.
func (s *Service) IdentifyFile(ctx context.Context, path string) models.Result {
	return s.run(ctx, func() (*audio.Clip, error) {
		return s.cfg.Decoder.DecodeFile(ctx, path)
	})
}

// IdentifyBuffer identifies interleaved PCM samples.
func (s *Service) IdentifyBuffer(ctx context.Context, samples []float64, channels, sampleRate int) models.Result {
	return s.run(ctx, func() (*audio.Clip, error) {
		return &audio.Clip{Samples: samples, Channels: channels, SampleRate: sampleRate}, nil
	})
}

// IdentifyLive records the given number of seconds from the capture source and
// identifies them. Only one live request runs at a time.
func (s *Service) IdentifyLive(ctx context.Context, seconds float64) models.Result {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	return s.run(ctx, func() (*audio.Clip, error) {
		if s.capture == nil {
			return nil, ErrCaptureClosed
		}
		return Record(ctx, s.capture, seconds)
	})
}

// Record starts src, reads at least seconds of audio and stops it on every path.
func Record(ctx context.Context, src Source, seconds float64) (clip *audio.Clip, err error) {
	rate, channels := src.SampleRate(), src.Channels()
	if seconds <= 0 || rate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid capture request: %.2fs at %d Hz x %d", seconds, rate, channels)
	}
	want := int(math.Ceil(seconds*float64(rate))) * channels

	if err := src.Start(); err != nil {
		return nil, fmt.Errorf("starting capture: %w", err)
	}
	defer func() {
		if stopErr := src.Stop(); stopErr != nil && err == nil {
			err = fmt.Errorf("stopping capture: %w", stopErr)
		}
	}()

	samples := make([]float64, 0, want)
	for len(samples) < want {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := src.Read()
		if err != nil {
			return nil, fmt.Errorf("reading capture: %w", err)
		}
		samples = append(samples, frame...)
	}
	return &audio.Clip{Samples: samples[:want], Channels: channels, SampleRate: rate}, nil
}

func (s *Service) run(ctx context.Context, acquire func() (*audio.Clip, error)) (res models.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = s.failed(fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return s.failed(err.Error())
	}

	s.enter(StateExtracting)
	clip, err := acquire()
	if err != nil {
		return s.failed(err.Error())
	}
	opts := s.cfg.Features
	opts.SampleRate = clip.SampleRate
	vec, err := features.Extract(clip.Samples, clip.Channels, opts)
	if err != nil {
		return s.failed(fmt.Sprintf("extracting features: %v", err))
	}

	s.enter(StateNormalizing)
	if s.cfg.Normalizer != nil {
		vec, err = s.cfg.Normalizer.Transform(vec)
		if err != nil {
			return s.failed(fmt.Sprintf("normalizing features: %v", err))
		}
	}

	s.enter(StateClassifying)
	pred, err := s.cfg.Classifier.Predict(vec)
	if err != nil {
		return s.failed(fmt.Sprintf("classifying: %v", err))
	}
	s.debugf("predicted %q (%.3f)", pred.Label, pred.Confidence)

	s.enter(StateLookingUp)
	rec, err := s.cfg.Catalogue.LookupByLabel(pred.Label, s.cfg.LabelKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.enter(StateNotFound)
		return models.NotFound(pred.Label, pred.Confidence)
	}
	if err != nil {
		return s.failed(fmt.Sprintf("looking up %q: %v", pred.Label, err))
	}

	s.enter(StateFound)
	return models.Found(pred.Label, rec, pred.Confidence)
}

func (s *Service) failed(reason string) models.Result {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Warnf("identification failed: %s", reason)
	}
	s.enter(StateFailed)
	return models.Failed(reason)
}

func (s *Service) enter(state State) {
	if s.cfg.Observer != nil {
		s.cfg.Observer(state)
	}
}

func (s *Service) debugf(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Debugf(format, args...)
	}
}
