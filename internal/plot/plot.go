// Package plot renders spectrogram and feature-spectrum images of songs.
package plot

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"os"
	"path/filepath"

	"github.com/eligwz/spectrogram"
	"github.com/xon-patrick/SongApp/pkg/songapp/audio"
	"github.com/xon-patrick/SongApp/pkg/songapp/features"
)

const (
	DefaultWidth  = 2048
	DefaultHeight = 512

	background = "000000"
	barColor   = "1db954"
)

type Size struct {
	Width  int
	Height int
}

func (s Size) withDefaults() Size {
	if s.Width <= 0 {
		s.Width = DefaultWidth
	}
	if s.Height <= 0 {
		s.Height = DefaultHeight
	}
	return s
}

func fill(img draw.Image) {
	black := spectrogram.ParseColor(background)
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

// Spectrogram draws a time-frequency image of clip (down-mixed, peak-normalised) as PNG.
func Spectrogram(clip *audio.Clip, outPath string, size Size) error {
	size = size.withDefaults()
	mono := features.Downmix(clip.Samples, clip.Channels)
	if len(mono) == 0 {
		return errors.New("plot: clip has no samples")
	}

	peak := 0.0
	for _, v := range mono {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak > 0 {
		for i := range mono {
			mono[i] /= peak
		}
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, size.Width, size.Height))
	fill(img)
	spectrogram.Drawfft(
		img,
		mono,
		uint32(clip.SampleRate),
		uint32(size.Height),
		false, // Hamming window
		false, // FFT
		true,  // magnitude
		false, // linear scale
	)

	if err := ensureDir(outPath); err != nil {
		return err
	}
	if err := spectrogram.SavePng(img, outPath); err != nil {
		return fmt.Errorf("saving %s: %w", outPath, err)
	}
	return nil
}

// FeatureBars draws a feature vector as vertical bars scaled to its maximum.
func FeatureBars(vec []float64, outPath string, size Size) error {
	size = size.withDefaults()
	if len(vec) == 0 {
		return errors.New("plot: empty feature vector")
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, size.Width, size.Height))
	fill(img)
	bar := image.NewUniform(spectrogram.ParseColor(barColor))

	maxV := 0.0
	for _, v := range vec {
		maxV = math.Max(maxV, v)
	}
	if maxV > 0 {
		for x := 0; x < size.Width; x++ {
			// Each column shows the largest value of the bins it covers.
			lo := x * len(vec) / size.Width
			hi := max((x+1)*len(vec)/size.Width, lo+1)
			col := 0.0
			for _, v := range vec[lo:min(hi, len(vec))] {
				col = math.Max(col, v)
			}
			h := int(math.Round(col / maxV * float64(size.Height)))
			if h > 0 {
				draw.Draw(img, image.Rect(x, size.Height-h, x+1, size.Height), bar, image.Point{}, draw.Src)
			}
		}
	}

	if err := ensureDir(outPath); err != nil {
		return err
	}
	if err := spectrogram.SavePng(img, outPath); err != nil {
		return fmt.Errorf("saving %s: %w", outPath, err)
	}
	return nil
}
