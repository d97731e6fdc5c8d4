package stt

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/loqalabs/loqa-dictate/internal/config"
	"github.com/sashabaranov/go-openai"
)

// openAIRecognizer posts each waveform to an OpenAI-compatible
// /audio/transcriptions endpoint, such as a local faster-whisper server.
type openAIRecognizer struct {
	client *openai.Client
	model  string
	mu     sync.Mutex
}

func NewOpenAIRecognizer(cfg config.STTConfig) (Recognizer, error) {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &openAIRecognizer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

func (r *openAIRecognizer) Transcribe(ctx context.Context, req Request) (TranscriptResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := tempWav(req.Samples, req.SampleRate)
	if err != nil {
		return TranscriptResult{}, err
	}
	defer os.Remove(path)

	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.model,
		FilePath: path,
		Language: req.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return TranscriptResult{}, fmt.Errorf("openai transcription: %w", err)
	}
	return TranscriptResult{Text: strings.TrimSpace(resp.Text)}, nil
}

func (r *openAIRecognizer) Close() error { return nil }
