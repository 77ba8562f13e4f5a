package songapp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/xon-patrick/SongApp/pkg/models"
	"github.com/xon-patrick/SongApp/pkg/songapp/classifier"
	"github.com/xon-patrick/SongApp/pkg/songapp/features"
	"github.com/xon-patrick/SongApp/pkg/songapp/inference"
	"github.com/xon-patrick/SongApp/pkg/songapp/scaler"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
)

// Recognizer identifies songs with a trained model. It owns the model, the optional
// scaler, the catalogue and the live capture handle.
type Recognizer struct {
	*Service

	model     *classifier.Model
	scaler    *scaler.Model
	inference *inference.Service
}

// NewRecognizer loads the classifier (and its scaler, when the model was trained on
// normalised features). A missing classifier file yields ErrModelMissing.
func NewRecognizer(opts ...Option) (*Recognizer, error) {
	svc, err := NewService(opts...)
	if err != nil {
		return nil, err
	}

	r, err := newRecognizer(svc)
	if err != nil {
		svc.Close()
		return nil, err
	}
	return r, nil
}

func newRecognizer(svc *Service) (*Recognizer, error) {
	cfg := svc.config

	model, err := classifier.Load(cfg.ModelPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModelMissing, cfg.ModelPath)
	}
	if err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}

	r := &Recognizer{Service: svc, model: model}

	var norm inference.Normalizer
	if model.Extraction.Normalized {
		sc, err := scaler.Load(cfg.ScalerPath)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScalerMissing, cfg.ScalerPath)
		}
		if err != nil {
			return nil, fmt.Errorf("loading scaler: %w", err)
		}
		if sc.Dim() != model.InputDim() {
			return nil, fmt.Errorf("scaler has %d dimensions but model expects %d", sc.Dim(), model.InputDim())
		}
		r.scaler = sc
		norm = sc
	}

	labelKey := cfg.LabelKey
	if model.Extraction.LabelKey != "" {
		if labelKey, err = storage.ParseLabelKey(model.Extraction.LabelKey); err != nil {
			return nil, fmt.Errorf("model label key: %w", err)
		}
	}

	featureLength := model.Extraction.FeatureLength
	if featureLength <= 0 {
		featureLength = model.InputDim()
	}

	icfg := inference.Config{
		Classifier: model,
		Catalogue:  svc.storage,
		LabelKey:   labelKey,
		Decoder:    svc.decoder,
		Features: features.Options{
			FeatureLength:      featureLength,
			MaxDurationSeconds: model.Extraction.MaxDurationSeconds,
		},
		OpenCapture: cfg.OpenCapture,
		Observer:    cfg.StateObserver,
		Logger:      svc.log,
	}
	if norm != nil {
		icfg.Normalizer = norm
	}

	r.inference, err = inference.New(icfg)
	if err != nil {
		return nil, err
	}

	svc.log.Infof("Loaded model %s (%d labels, accuracy %.2f%%)", model.ID, len(model.Labels), model.Accuracy*100)
	return r, nil
}

// Open acquires the live capture source, when one is configured.
func (r *Recognizer) Open() error {
	return r.inference.Open()
}

func (r *Recognizer) IdentifyFile(ctx context.Context, path string) models.Result {
	return r.inference.IdentifyFile(ctx, path)
}

func (r *Recognizer) IdentifyBuffer(ctx context.Context, samples []float64, channels, sampleRate int) models.Result {
	return r.inference.IdentifyBuffer(ctx, samples, channels, sampleRate)
}

// IdentifyLive records seconds of live audio and identifies it. Calls are serialised.
func (r *Recognizer) IdentifyLive(ctx context.Context, seconds float64) models.Result {
	return r.inference.IdentifyLive(ctx, seconds)
}

func (r *Recognizer) Info() ModelInfo {
	return ModelInfo{
		ID:           r.model.ID,
		Labels:       append([]string(nil), r.model.Labels...),
		Accuracy:     r.model.Accuracy,
		FeatureLen:   r.model.InputDim(),
		ChunkSeconds: r.model.Extraction.MaxDurationSeconds,
		Normalized:   r.scaler != nil,
		LabelKey:     r.model.Extraction.LabelKey,
	}
}

// Close releases the capture source and the catalogue.
func (r *Recognizer) Close() error {
	return errors.Join(r.inference.Close(), r.Service.Close())
}
