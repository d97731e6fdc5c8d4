package stt

import (
	"context"
	"strings"
	"time"
)

var mockWords = strings.Fields("the quick brown fox jumps over the lazy dog while the band plays on")

const mockWordDuration = 400 * time.Millisecond

// mockRecognizer "hears" one word per 400ms of audio and spells out the word
// in progress proportionally, so successive calls on a growing buffer behave
// like a real model refining its hypothesis.
type mockRecognizer struct{}

func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(ctx context.Context, req Request) (TranscriptResult, error) {
	if err := ctx.Err(); err != nil {
		return TranscriptResult{}, err
	}
	if req.SampleRate <= 0 || len(req.Samples) == 0 {
		return TranscriptResult{}, nil
	}
	duration := time.Duration(len(req.Samples)) * time.Second / time.Duration(req.SampleRate)
	full := int(duration / mockWordDuration)
	frac := float64(duration%mockWordDuration) / float64(mockWordDuration)

	words := make([]string, 0, full+1)
	for i := 0; i < full; i++ {
		words = append(words, mockWords[i%len(mockWords)])
	}
	next := mockWords[full%len(mockWords)]
	if n := int(frac * float64(len(next))); n > 0 {
		words = append(words, next[:n])
	}
	return TranscriptResult{Text: strings.Join(words, " ")}, nil
}

func (m *mockRecognizer) Close() error { return nil }
