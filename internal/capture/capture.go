// Package capture delivers raw audio frames from a microphone, a WAV file or
// remote clients on the bus. Frames are handed to a callback on the
// capture goroutine, which must not block.
package capture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loqalabs/loqa-dictate/internal/audio"
	"github.com/loqalabs/loqa-dictate/internal/bus"
	"github.com/loqalabs/loqa-dictate/internal/config"
)

// Frame is one captured block of interleaved float32 samples.
type Frame struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Source produces frames until its context is cancelled or, for finite
// sources, the input is exhausted.
type Source interface {
	Start(ctx context.Context, deliver func(Frame)) error
	// Done is closed once the source has delivered its last frame.
	Done() <-chan struct{}
	Close() error
}

// New builds the source selected by cfg.Source. The nats source needs a bus
// client.
func New(cfg config.AudioConfig, busClient *bus.Client, logger *slog.Logger) (Source, error) {
	logger = logger.With(slog.String("component", "capture"), slog.String("source", cfg.Source))
	switch cfg.Source {
	case "portaudio", "":
		return NewPortAudioSource(cfg, logger)
	case "wav":
		return NewWAVSource(cfg, logger)
	case "nats":
		if busClient == nil {
			return nil, fmt.Errorf("capture: nats source requires bus.enabled")
		}
		return NewNATSSource(cfg, busClient, logger), nil
	default:
		return nil, fmt.Errorf("capture: unknown source %q (supported: portaudio, wav, nats)", cfg.Source)
	}
}

// Forward returns a deliver callback that normalizes each frame, regroups the
// audio into blocks of blockMS and offers them to q without blocking. Blocks
// that do not fit are dropped. The callback must be called from one goroutine.
func Forward(n *audio.Normalizer, blockMS int, q *audio.Queue, logger *slog.Logger) func(Frame) {
	chunker := audio.NewChunker(n.TargetRate * blockMS / 1000)
	return func(f Frame) {
		normalized := n.Normalize(f.Samples, f.Channels, f.SampleRate)
		for _, samples := range chunker.Push(normalized.Samples) {
			if !q.Offer(audio.Block{Samples: samples, SampleRate: n.TargetRate}) {
				logger.Debug("audio queue full, dropping block", slog.Int64("dropped", q.Dropped()))
			}
		}
	}
}
