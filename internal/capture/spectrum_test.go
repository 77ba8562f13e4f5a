package capture

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpectrumSilenceIsZero(t *testing.T) {
	s := NewSpectrum(64, false)
	out := s.Frame(make([]float64, 64))
	require.Len(t, out, 32)
	for _, v := range out {
		assert.Equal(t, 0.0, v)
	}
}

func TestSpectrumToneLevel(t *testing.T) {
	const n = 256
	s := NewSpectrum(n, false)
	samples := make([]float64, n)
	// Amplitude 1000 at bin 16: |X| = 1000*n/2, scaled by n/2 -> 1000 -> 60 dB.
	for i := range samples {
		samples[i] = 1000 * math.Cos(2*math.Pi*16*float64(i)/n)
	}
	out := s.Frame(samples)
	assert.InDelta(t, 60, out[16], 1e-6)
	assert.Equal(t, 0.0, out[40])
	assert.Equal(t, 16*8000.0/n, s.BinFrequency(16, 8000))
}

func TestSpectrumNeverNegative(t *testing.T) {
	s := NewSpectrum(128, true)
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = 0.001 * float64(i%7)
	}
	for _, v := range s.Frame(samples) {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

type fakeSource struct {
	mu      sync.Mutex
	reads   int
	started bool
	stopped bool
	failAt  int
}

func (f *fakeSource) SampleRate() int { return 8000 }
func (f *fakeSource) Channels() int   { return 2 }
func (f *fakeSource) Start() error    { f.started = true; return nil }
func (f *fakeSource) Stop() error     { f.stopped = true; return nil }
func (f *fakeSource) Read() ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failAt > 0 && f.reads >= f.failAt {
		return nil, errors.New("overflow")
	}
	return make([]float64, 32), nil
}

type chanSink chan any

func (c chanSink) Send(data any) error {
	select {
	case c <- data:
	default:
	}
	return nil
}

func TestVisualizerPublishesFrames(t *testing.T) {
	src := &fakeSource{}
	sink := make(chanSink, 8)
	v := &Visualizer{Source: src, Sink: sink, Spectrum: NewSpectrum(32, false), Interval: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()

	select {
	case data := <-sink:
		frame, ok := data.(Frame)
		require.True(t, ok)
		assert.Equal(t, 32, frame.Size)
		assert.Len(t, frame.Levels, 16)
		assert.Equal(t, 8000, frame.SampleRate)
	case <-time.After(5 * time.Second):
		t.Fatal("no frame published")
	}

	cancel()
	require.NoError(t, <-done)
	assert.True(t, src.started)
	assert.True(t, src.stopped)
}

func TestVisualizerStopsOnReadError(t *testing.T) {
	src := &fakeSource{failAt: 1}
	v := &Visualizer{Source: src, Sink: make(chanSink, 1), Interval: time.Millisecond}

	err := v.Run(context.Background())
	assert.Error(t, err)
	assert.True(t, src.stopped)
}
