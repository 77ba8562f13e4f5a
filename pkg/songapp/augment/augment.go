// Package augment triples a labelled dataset with noisy and smoothed copies.
package augment

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	NoiseStdDev   = 0.01
	SmoothSigma   = 1.0
	Factor        = 3
	DefaultSeed   = 42
	kernelTruncat = 4.0
)

// Augment emits, for every input vector in order: a copy with N(0, NoiseStdDev)
// noise added, a Gaussian-smoothed copy and the original. Labels are repeated to match.
// src drives the noise; nil uses a generator seeded with DefaultSeed.
func Augment(features [][]float64, labels []string, src rand.Source) ([][]float64, []string, error) {
	if len(features) != len(labels) {
		return nil, nil, fmt.Errorf("augment: %d feature vectors but %d labels", len(features), len(labels))
	}
	if src == nil {
		src = rand.NewPCG(DefaultSeed, DefaultSeed)
	}
	noise := distuv.Normal{Mu: 0, Sigma: NoiseStdDev, Src: src}

	outX := make([][]float64, 0, Factor*len(features))
	outY := make([]string, 0, Factor*len(labels))
	for i, vec := range features {
		if len(vec) == 0 {
			return nil, nil, errors.New("augment: empty feature vector")
		}

		noisy := make([]float64, len(vec))
		for j, v := range vec {
			noisy[j] = v + noise.Rand()
		}

		original := make([]float64, len(vec))
		copy(original, vec)

		outX = append(outX, noisy, GaussianFilter1D(vec, SmoothSigma), original)
		outY = append(outY, labels[i], labels[i], labels[i])
	}
	return outX, outY, nil
}

// GaussianFilter1D convolves x with a normalised Gaussian kernel of radius
// round(4*sigma), mirroring samples at the edges (d c b a | a b c d | d c b a).
func GaussianFilter1D(x []float64, sigma float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	if sigma <= 0 {
		copy(out, x)
		return out
	}

	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2
	n := len(x)
	for i := range x {
		var acc float64
		for k, w := range kernel {
			acc += w * x[reflect(i+k-radius, n)]
		}
		out[i] = acc
	}
	return out
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(kernelTruncat*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
