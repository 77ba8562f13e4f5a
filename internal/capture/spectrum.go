package capture

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// MinMagnitude floors magnitudes before the dB conversion.
const MinMagnitude = 1e-10

// Spectrum converts fixed-size mono frames into dB magnitude bins.
// Not safe for concurrent use.
type Spectrum struct {
	size   int
	fft    *fourier.FFT
	window []float64
	input  []float64
	coeffs []complex128
}

// NewSpectrum prepares a transform for frames of size samples. With hann set the
// frame is tapered first; otherwise it is used as is.
func NewSpectrum(size int, hann bool) *Spectrum {
	s := &Spectrum{
		size:   size,
		fft:    fourier.NewFFT(size),
		input:  make([]float64, size),
		coeffs: make([]complex128, size/2+1),
	}
	if hann {
		w := make([]float64, size)
		for i := range w {
			w[i] = 1
		}
		s.window = window.Hann(w)
	}
	return s
}

func (s *Spectrum) Size() int { return s.size }

// Bins is the number of values Frame returns.
func (s *Spectrum) Bins() int { return s.size / 2 }

// Frame returns 20*log10(max(|X[k]|/(N/2), MinMagnitude)) for the first N/2 bins,
// with negative levels clipped to zero. Short input is zero-padded.
func (s *Spectrum) Frame(samples []float64) []float64 {
	for i := range s.input {
		v := 0.0
		if i < len(samples) {
			v = samples[i]
		}
		if s.window != nil {
			v *= s.window[i]
		}
		s.input[i] = v
	}
	s.coeffs = s.fft.Coefficients(s.coeffs, s.input)

	half := s.size / 2
	out := make([]float64, half)
	for k := 0; k < half; k++ {
		m := math.Max(cmplx.Abs(s.coeffs[k])/float64(half), MinMagnitude)
		db := 20 * math.Log10(m)
		if db < 0 {
			db = 0
		}
		out[k] = db
	}
	return out
}

// BinFrequency returns the centre frequency of bin k at the given rate.
func (s *Spectrum) BinFrequency(k, sampleRate int) float64 {
	return float64(k) * float64(sampleRate) / float64(s.size)
}
