//go:build whisper_cpp

package stt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/loqalabs/loqa-dictate/internal/config"
)

// whisperRecognizer runs whisper.cpp in process. The model is loaded once;
// each call gets a fresh decoding context.
type whisperRecognizer struct {
	model whisper.Model
	mu    sync.Mutex
}

func NewWhisperRecognizer(cfg config.STTConfig) (Recognizer, error) {
	model, err := whisper.New(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("stt: load model %q: %w", cfg.ModelPath, err)
	}
	return &whisperRecognizer{model: model}, nil
}

func (r *whisperRecognizer) Transcribe(ctx context.Context, req Request) (TranscriptResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return TranscriptResult{}, err
	}
	wctx, err := r.model.NewContext()
	if err != nil {
		return TranscriptResult{}, fmt.Errorf("stt: create context: %w", err)
	}
	lang := req.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return TranscriptResult{}, fmt.Errorf("stt: set language %q: %w", lang, err)
	}
	if req.BeamSize > 0 {
		wctx.SetBeamSize(req.BeamSize)
	}

	if err := wctx.Process(req.Samples, nil, nil, nil); err != nil {
		return TranscriptResult{}, fmt.Errorf("stt: process: %w", err)
	}

	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return TranscriptResult{}, fmt.Errorf("stt: next segment: %w", err)
		}
		segments = append(segments, strings.TrimSpace(seg.Text))
	}
	return TranscriptResult{Text: strings.TrimSpace(strings.Join(segments, " "))}, nil
}

func (r *whisperRecognizer) Close() error {
	if r.model != nil {
		return r.model.Close()
	}
	return nil
}
