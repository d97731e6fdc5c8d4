// Package output renders dictated text, either on the terminal or as
// synthetic keystrokes into the focused window.
package output

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/loqalabs/loqa-dictate/internal/config"
)

// Sink receives stabilized text. Confirmed text is durable; Partial replaces
// whatever partial text was shown before; CommitLine closes the line.
type Sink interface {
	Confirmed(text string) error
	Partial(text string) error
	CommitLine() error
}

// Injector synthesizes keystrokes in the focused window. TypeText reports how
// many runes reached the window, also when it fails part way.
type Injector interface {
	TypeText(text string) (int, error)
	Backspace(n int) error
}

// New builds the sink selected by cfg.Mode. Screen output goes to w.
func New(cfg config.OutputConfig, w io.Writer, logger *slog.Logger) (Sink, error) {
	switch cfg.Mode {
	case "screen", "":
		return NewScreen(w), nil
	case "keyboard":
		injector, err := NewInjector(cfg)
		if err != nil {
			return nil, err
		}
		delay := time.Duration(cfg.KeystrokeDelayMS) * time.Millisecond
		return NewKeyboard(injector, delay, cfg.KeyboardPartials, logger), nil
	default:
		return nil, fmt.Errorf("output: unknown mode %q (supported: screen, keyboard)", cfg.Mode)
	}
}

// NewInjector builds the keystroke backend selected by cfg.Injector.
func NewInjector(cfg config.OutputConfig) (Injector, error) {
	switch cfg.Injector {
	case "exec", "":
		return NewExecInjector(cfg.TypeCommand, cfg.BackspaceCommand)
	case "keybd":
		return NewKeybdInjector()
	default:
		return nil, fmt.Errorf("output: unknown injector %q (supported: exec, keybd)", cfg.Injector)
	}
}
