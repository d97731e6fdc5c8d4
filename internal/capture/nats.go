package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-dictate/internal/audio"
	"github.com/loqalabs/loqa-dictate/internal/bus"
	"github.com/loqalabs/loqa-dictate/internal/config"
	"github.com/loqalabs/loqa-dictate/internal/protocol"
)

// natsSource receives PCM16 audio frames published by remote clients on
// audio.frame.<subject>.
type natsSource struct {
	subject string
	bus     *bus.Client
	logger  *slog.Logger

	sub       *nats.Subscription
	done      chan struct{}
	closeOnce sync.Once
}

func NewNATSSource(cfg config.AudioConfig, busClient *bus.Client, logger *slog.Logger) Source {
	return &natsSource{
		subject: protocol.AudioFrameSubject(cfg.Subject),
		bus:     busClient,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (s *natsSource) Start(ctx context.Context, deliver func(Frame)) error {
	sub, err := s.bus.Conn().Subscribe(s.subject, func(msg *nats.Msg) {
		frame, err := decodeFrame(msg.Data)
		if err != nil {
			s.logger.Warn("failed to decode audio frame", slog.String("error", err.Error()))
			return
		}
		if len(frame.Samples) > 0 {
			deliver(frame)
		}
	})
	if err != nil {
		return fmt.Errorf("capture: subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info("listening for remote audio", slog.String("subject", s.subject))

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return nil
}

func decodeFrame(data []byte) (Frame, error) {
	var msg protocol.AudioFrame
	if err := json.Unmarshal(data, &msg); err != nil {
		return Frame{}, err
	}
	if msg.SampleRate <= 0 {
		return Frame{}, fmt.Errorf("invalid sample rate %d", msg.SampleRate)
	}
	samples, err := audio.PCM16ToFloat32(msg.PCM)
	if err != nil {
		return Frame{}, err
	}
	channels := msg.Channels
	if channels < 1 {
		channels = 1
	}
	return Frame{Samples: samples, Channels: channels, SampleRate: msg.SampleRate}, nil
}

func (s *natsSource) Done() <-chan struct{} { return s.done }

func (s *natsSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.sub != nil {
			err = s.sub.Drain()
		}
		close(s.done)
	})
	return err
}
