package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"

	"github.com/loqalabs/loqa-dictate/internal/config"
)

// wavSource replays a WAV file in blocks, paced at speed times real time. A
// speed of 0 delivers as fast as the consumer callback returns.
type wavSource struct {
	path    string
	blockMS int
	speed   float64
	logger  *slog.Logger

	samples  []float32
	channels int
	rate     int

	done      chan struct{}
	closeOnce sync.Once
}

func NewWAVSource(cfg config.AudioConfig, logger *slog.Logger) (Source, error) {
	samples, channels, rate, err := readWAV(cfg.WAVPath)
	if err != nil {
		return nil, err
	}
	return &wavSource{
		path:     cfg.WAVPath,
		blockMS:  cfg.BlockMS,
		speed:    cfg.WAVSpeed,
		logger:   logger,
		samples:  samples,
		channels: channels,
		rate:     rate,
		done:     make(chan struct{}),
	}, nil
}

// readWAV decodes a PCM WAV file into interleaved float32 samples in [-1, 1).
func readWAV(path string) ([]float32, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("capture: open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("capture: %s is not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("capture: decode wav: %w", err)
	}
	depth := int(dec.BitDepth)
	if depth <= 0 || depth > 32 {
		return nil, 0, 0, fmt.Errorf("capture: unsupported bit depth %d", depth)
	}
	scale := float32(int64(1) << (depth - 1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	return samples, channels, int(dec.SampleRate), nil
}

func (s *wavSource) Start(ctx context.Context, deliver func(Frame)) error {
	frames := BlockFrames(float64(s.rate), s.blockMS)
	if frames <= 0 {
		return fmt.Errorf("capture: invalid block size for %d Hz", s.rate)
	}
	step := frames * s.channels
	var interval time.Duration
	if s.speed > 0 {
		interval = time.Duration(float64(s.blockMS) * float64(time.Millisecond) / s.speed)
	}

	s.logger.Info("replaying wav",
		slog.String("path", s.path),
		slog.Int("sample_rate", s.rate),
		slog.Int("channels", s.channels),
		slog.Duration("block_interval", interval))

	go func() {
		defer s.Close()
		var ticker *time.Ticker
		if interval > 0 {
			ticker = time.NewTicker(interval)
			defer ticker.Stop()
		}
		for off := 0; off < len(s.samples); off += step {
			if ticker != nil {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			} else if ctx.Err() != nil {
				return
			}
			end := min(off+step, len(s.samples))
			chunk := make([]float32, end-off)
			copy(chunk, s.samples[off:end])
			deliver(Frame{Samples: chunk, Channels: s.channels, SampleRate: s.rate})
		}
		s.logger.Info("wav replay finished")
	}()
	return nil
}

func (s *wavSource) Done() <-chan struct{} { return s.done }

func (s *wavSource) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
