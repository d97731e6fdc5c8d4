//go:build !whisper_cpp

package stt

import (
	"errors"

	"github.com/loqalabs/loqa-dictate/internal/config"
)

// NewWhisperRecognizer is unavailable unless the binary is built with the
// whisper_cpp tag and linked against libwhisper.
func NewWhisperRecognizer(cfg config.STTConfig) (Recognizer, error) {
	return nil, errors.New("stt: whisper backend requires building with -tags whisper_cpp")
}
