//go:build portaudio

package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/loqalabs/loqa-dictate/internal/config"
)

type portAudioSource struct {
	cfg    config.AudioConfig
	device *portaudio.DeviceInfo
	logger *slog.Logger

	stream    *portaudio.Stream
	done      chan struct{}
	closeOnce sync.Once
}

// NewPortAudioSource opens the configured input device. Device -1 selects the
// host default.
func NewPortAudioSource(cfg config.AudioConfig, logger *slog.Logger) (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("capture: initialize portaudio: %w", err)
	}
	device, err := resolveDevice(cfg.Device)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	return &portAudioSource{
		cfg:    cfg,
		device: device,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

func resolveDevice(index int) (*portaudio.DeviceInfo, error) {
	if index < 0 {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("capture: no default input device: %w", err)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("capture: list devices: %w", err)
	}
	if index >= len(devices) || devices[index].MaxInputChannels <= 0 {
		return nil, fmt.Errorf("capture: input device %d not found", index)
	}
	return devices[index], nil
}

func (s *portAudioSource) Start(ctx context.Context, deliver func(Frame)) error {
	rate := s.device.DefaultSampleRate
	params := portaudio.LowLatencyParameters(s.device, nil)
	params.Input.Channels = 1
	params.SampleRate = rate
	params.FramesPerBuffer = BlockFrames(rate, s.cfg.BlockMS)

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		samples := make([]float32, len(in))
		copy(samples, in)
		deliver(Frame{Samples: samples, Channels: 1, SampleRate: int(rate)})
	})
	if err != nil {
		return fmt.Errorf("capture: open stream on %q: %w", s.device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("capture: start stream: %w", err)
	}
	s.stream = stream
	s.logger.Info("capturing audio",
		slog.String("device", s.device.Name),
		slog.Float64("native_rate", rate),
		slog.Int("frames_per_block", params.FramesPerBuffer))

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return nil
}

func (s *portAudioSource) Done() <-chan struct{} { return s.done }

func (s *portAudioSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.stream != nil {
			if stopErr := s.stream.Stop(); stopErr != nil {
				err = stopErr
			}
			if closeErr := s.stream.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
		if termErr := portaudio.Terminate(); termErr != nil && err == nil {
			err = termErr
		}
		close(s.done)
	})
	return err
}

// ListDevices enumerates input devices through PortAudio.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("capture: initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("capture: list devices: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()

	all := make([]Device, 0, len(infos))
	for i, info := range infos {
		hostAPI := ""
		if info.HostApi != nil {
			hostAPI = info.HostApi.Name
		}
		all = append(all, Device{
			Index:      i,
			Name:       info.Name,
			HostAPI:    hostAPI,
			Channels:   info.MaxInputChannels,
			SampleRate: info.DefaultSampleRate,
			Default:    def != nil && info == def,
		})
	}
	return InputDevices(all), nil
}
