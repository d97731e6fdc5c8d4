//go:build !portaudio

package capture

import (
	"errors"
	"log/slog"

	"github.com/loqalabs/loqa-dictate/internal/config"
)

var errNoPortAudio = errors.New("capture: microphone input requires building with -tags portaudio")

func NewPortAudioSource(cfg config.AudioConfig, logger *slog.Logger) (Source, error) {
	return nil, errNoPortAudio
}

func ListDevices() ([]Device, error) {
	return nil, errNoPortAudio
}
