package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/xon-patrick/SongApp/pkg/songapp/features"
)

// Source is the live input the visualizer reads from.
type Source interface {
	SampleRate() int
	Channels() int
	Start() error
	Read() ([]float64, error)
	Stop() error
}

// Sink receives spectrum frames. Send must not block for long.
type Sink interface {
	Send(data any) error
}

// Frame is one published spectrum.
type Frame struct {
	Time       time.Time `json:"time"`
	SampleRate int       `json:"sample_rate"`
	Size       int       `json:"size"`
	Levels     []float64 `json:"levels"`
}

type Visualizer struct {
	Source   Source
	Sink     Sink
	Spectrum *Spectrum
	Interval time.Duration
}

// Run starts the source and publishes one frame per interval until ctx is done or
// a read fails. The source is stopped on return.
func (v *Visualizer) Run(ctx context.Context) (err error) {
	interval := v.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	spec := v.Spectrum
	if spec == nil {
		spec = NewSpectrum(DefaultFrameSize, false)
	}

	if err := v.Source.Start(); err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}
	defer func() {
		if stopErr := v.Source.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pending := make([]float64, 0, spec.Size())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for len(pending) < spec.Size() {
			raw, err := v.Source.Read()
			if err != nil {
				return fmt.Errorf("reading capture: %w", err)
			}
			pending = append(pending, features.Downmix(raw, v.Source.Channels())...)
		}

		frame := Frame{
			Time:       time.Now(),
			SampleRate: v.Source.SampleRate(),
			Size:       spec.Size(),
			Levels:     spec.Frame(pending[:spec.Size()]),
		}
		pending = append(pending[:0], pending[spec.Size():]...)

		if err := v.Sink.Send(frame); err != nil {
			return fmt.Errorf("publishing frame: %w", err)
		}
	}
}
