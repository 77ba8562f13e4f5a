// Package capture reads live audio from the default input device and turns it
// into spectrum frames for display.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	DefaultSampleRate = 44100
	DefaultFrameSize  = 4096
)

type Config struct {
	SampleRate int
	Channels   int
	FrameSize  int // frames per Read
	DeviceID   int // -1 selects the default input device
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.FrameSize <= 0 {
		c.FrameSize = DefaultFrameSize
	}
	return c
}

// PortAudioSource is a blocking-read input stream. It is not safe for concurrent Reads.
type PortAudioSource struct {
	cfg    Config
	stream *portaudio.Stream
	buffer []int16

	mu      sync.Mutex
	running bool
	closed  bool
}

// Open initialises portaudio and opens (but does not start) an input stream.
func Open(cfg Config) (*PortAudioSource, error) {
	cfg = cfg.withDefaults()

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio initialize: %w", err)
	}

	device, err := inputDevice(cfg.DeviceID)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	params := portaudio.HighLatencyParameters(device, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.FrameSize

	buffer := make([]int16, cfg.FrameSize*cfg.Channels)
	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening input stream on %s: %w", device.Name, err)
	}

	return &PortAudioSource{cfg: cfg, stream: stream, buffer: buffer}, nil
}

func inputDevice(id int) (*portaudio.DeviceInfo, error) {
	if id < 0 {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	if id >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", id)
	}
	if devices[id].MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) has no inputs", id, devices[id].Name)
	}
	return devices[id], nil
}

func (s *PortAudioSource) SampleRate() int { return s.cfg.SampleRate }

func (s *PortAudioSource) Channels() int { return s.cfg.Channels }

func (s *PortAudioSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("capture: source closed")
	}
	if s.running {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return err
	}
	s.running = true
	return nil
}

// Read blocks for one buffer and returns it as interleaved samples on the int16 scale.
func (s *PortAudioSource) Read() ([]float64, error) {
	if err := s.stream.Read(); err != nil {
		return nil, err
	}
	out := make([]float64, len(s.buffer))
	for i, v := range s.buffer {
		out[i] = float64(v)
	}
	return out, nil
}

func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	return s.stream.Stop()
}

// Close stops and closes the stream and terminates portaudio.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.running {
		s.running = false
		errs = append(errs, s.stream.Stop())
	}
	errs = append(errs, s.stream.Close(), portaudio.Terminate())
	return errors.Join(errs...)
}

// Device describes an audio device for listings.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
}

// InputDevices lists devices with at least one input channel.
func InputDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio initialize: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var out []Device
	for i, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Device{ID: i, Name: d.Name, MaxInputChannels: d.MaxInputChannels, DefaultSampleRate: d.DefaultSampleRate})
	}
	return out, nil
}
