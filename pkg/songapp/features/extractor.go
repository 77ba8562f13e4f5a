// Package features turns PCM audio into fixed-length magnitude-spectrum vectors.
package features

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const DefaultFeatureLength = 1024

var (
	ErrEmptySamples    = errors.New("features: empty sample sequence")
	ErrInvalidChannels = errors.New("features: channel count must be at least 1")
	ErrInvalidRate     = errors.New("features: sample rate must be positive when a duration limit is set")
)

// Options controls extraction. The zero value means 1024 features over the whole clip.
type Options struct {
	FeatureLength      int
	MaxDurationSeconds float64
	SampleRate         int
}

func (o Options) withDefaults() Options {
	if o.FeatureLength <= 0 {
		o.FeatureLength = DefaultFeatureLength
	}
	return o
}

// Extract computes the magnitude spectrum of samples (interleaved when channels > 1),
// normalised by the number of transformed samples and fitted to opts.FeatureLength.
func Extract(samples []float64, channels int, opts Options) ([]float64, error) {
	if channels < 1 {
		return nil, ErrInvalidChannels
	}
	if len(samples) == 0 {
		return nil, ErrEmptySamples
	}
	opts = opts.withDefaults()

	mono := Downmix(samples, channels)
	if len(mono) == 0 {
		return nil, ErrEmptySamples
	}

	if opts.MaxDurationSeconds > 0 {
		if opts.SampleRate <= 0 {
			return nil, ErrInvalidRate
		}
		limit := int(opts.MaxDurationSeconds * float64(opts.SampleRate))
		if limit < 1 {
			return nil, fmt.Errorf("features: duration limit %.3fs at %d Hz selects no samples", opts.MaxDurationSeconds, opts.SampleRate)
		}
		if len(mono) > limit {
			mono = mono[:limit]
		}
	}

	return Fit(Magnitude(mono), opts.FeatureLength), nil
}

// Magnitude returns |rfft(x)|/len(x) for the n/2+1 non-negative frequency bins.
func Magnitude(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	spectrum := fft.FFTReal(x)

	bins := n/2 + 1
	out := make([]float64, bins)
	scale := float64(n)
	for i := 0; i < bins; i++ {
		out[i] = cmplx.Abs(spectrum[i]) / scale
	}
	return out
}

// Fit truncates or right-pads v with zeros to exactly length values. The result never aliases v.
func Fit(v []float64, length int) []float64 {
	out := make([]float64, length)
	copy(out, v)
	return out
}

// Downmix averages interleaved channels sample-wise. A trailing partial frame is dropped.
func Downmix(samples []float64, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}
	frames := len(samples) / channels
	mono := make([]float64, frames)
	inv := 1 / float64(channels)
	for i := 0; i < frames; i++ {
		var sum float64
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += samples[base+c]
		}
		mono[i] = sum * inv
	}
	return mono
}

// Chunk splits mono audio into consecutive segments of the given duration.
// The trailing partial segment is dropped, so audio shorter than one segment yields nothing.
func Chunk(mono []float64, sampleRate int, seconds float64) [][]float64 {
	size := int(seconds * float64(sampleRate))
	if size <= 0 {
		return nil
	}
	count := len(mono) / size
	chunks := make([][]float64, 0, count)
	for i := 0; i < count; i++ {
		chunks = append(chunks, mono[i*size:(i+1)*size])
	}
	return chunks
}
