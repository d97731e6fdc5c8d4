package stt

import (
	"context"
	"fmt"

	"github.com/loqalabs/loqa-dictate/internal/config"
)

// Request carries one whole-utterance waveform to a recognizer.
type Request struct {
	Samples    []float32
	SampleRate int
	Language   string
	BeamSize   int
	Final      bool
}

// TranscriptResult captures recognizer output.
type TranscriptResult struct {
	Text       string
	Confidence float64
}

// Recognizer abstracts STT backends. Implementations may return empty text.
type Recognizer interface {
	Transcribe(ctx context.Context, req Request) (TranscriptResult, error)
	Close() error
}

// New builds the recognizer selected by cfg.Mode.
func New(cfg config.STTConfig) (Recognizer, error) {
	switch cfg.Mode {
	case "mock", "":
		return NewMockRecognizer(), nil
	case "exec":
		return NewExecRecognizer(cfg)
	case "openai":
		return NewOpenAIRecognizer(cfg)
	case "whisper":
		return NewWhisperRecognizer(cfg)
	default:
		return nil, fmt.Errorf("stt: unknown mode %q (supported: mock, exec, openai, whisper)", cfg.Mode)
	}
}

// Warmup runs one second of silence through the recognizer so the first real
// utterance does not pay model initialization latency.
func Warmup(ctx context.Context, r Recognizer, sampleRate int) error {
	_, err := r.Transcribe(ctx, Request{
		Samples:    make([]float32, sampleRate),
		SampleRate: sampleRate,
		BeamSize:   1,
		Final:      true,
	})
	if err != nil {
		return fmt.Errorf("warmup: %w", err)
	}
	return nil
}
