// Package audio decodes song files into interleaved PCM samples.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

var (
	ErrInvalidWAV = errors.New("audio: not a valid WAV file")
	ErrNoSamples  = errors.New("audio: file holds no samples")
)

// Clip is decoded audio. Samples are interleaved and keep the integer scale of the
// source (16-bit audio spans -32768..32767).
type Clip struct {
	Samples    []float64
	Channels   int
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.Channels == 0 || c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)/c.Channels) / float64(c.SampleRate)
}

// Decoder turns files into clips. Formats other than WAV and MP3 go through ffmpeg
// when UseFFmpeg is set.
type Decoder struct {
	UseFFmpeg bool
	TempDir   string
}

func (d Decoder) DecodeFile(ctx context.Context, path string) (*Clip, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return ReadWAVFile(path)
	case ".mp3":
		return ReadMP3File(path)
	}

	if !d.UseFFmpeg {
		return nil, fmt.Errorf("audio: unsupported format %q", filepath.Ext(path))
	}
	tmpDir, err := os.MkdirTemp(d.TempDir, "songapp-convert-")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	wavPath, err := ConvertToWAV(ctx, path, tmpDir, ConvertWAVConfig{})
	if err != nil {
		return nil, err
	}
	return ReadWAVFile(wavPath)
}

func ReadWAVFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	clip, err := ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return clip, nil
}

// ReadWAV decodes a PCM WAV stream of any channel count and bit depth.
func ReadWAV(r io.ReadSeeker) (*Clip, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, ErrNoSamples
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		channels = 1
	}
	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v)
	}
	return &Clip{Samples: samples, Channels: channels, SampleRate: int(decoder.SampleRate)}, nil
}

func ReadMP3File(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	clip, err := ReadMP3(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return clip, nil
}

// ReadMP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo.
func ReadMP3(r io.Reader) (*Clip, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decoding mp3: %w", err)
	}

	var samples []float64
	if n := decoder.Length(); n > 0 {
		samples = make([]float64, 0, n/2)
	}
	buf := make([]byte, 8192)
	var carry []byte
	for {
		n, err := decoder.Read(buf)
		chunk := append(carry, buf[:n]...)
		even := len(chunk) &^ 1
		for i := 0; i < even; i += 2 {
			samples = append(samples, float64(int16(binary.LittleEndian.Uint16(chunk[i:]))))
		}
		carry = append(carry[:0], chunk[even:]...)

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading mp3: %w", err)
		}
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	return &Clip{Samples: samples, Channels: 2, SampleRate: decoder.SampleRate()}, nil
}

// WriteWAVFile stores a clip as 16-bit PCM. Samples are clamped to the int16 range.
func WriteWAVFile(path string, clip *Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, clip.SampleRate, 16, clip.Channels, 1)
	data := make([]int, len(clip.Samples))
	for i, v := range clip.Samples {
		switch {
		case v > 32767:
			data[i] = 32767
		case v < -32768:
			data[i] = -32768
		default:
			data[i] = int(v)
		}
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: clip.Channels, SampleRate: clip.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalising wav: %w", err)
	}
	return f.Close()
}
