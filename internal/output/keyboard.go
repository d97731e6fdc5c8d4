package output

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Keyboard types text into the focused window. A shown partial is removed
// with exactly as many backspaces as the injector reported typing.
type Keyboard struct {
	injector   Injector
	delay      time.Duration
	partials   bool
	partialLen int
	logger     *slog.Logger
}

// NewKeyboard returns a keystroke sink. When showPartials is false, partial
// text is never typed, so nothing has to be erased later.
func NewKeyboard(injector Injector, delay time.Duration, showPartials bool, logger *slog.Logger) *Keyboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Keyboard{
		injector: injector,
		delay:    delay,
		partials: showPartials,
		logger:   logger.With(slog.String("component", "keyboard")),
	}
}

func (k *Keyboard) Confirmed(text string) error {
	if text == "" {
		return nil
	}
	if err := k.erasePartial(); err != nil {
		return err
	}
	_, err := k.typeText(text)
	return err
}

func (k *Keyboard) Partial(text string) error {
	if !k.partials {
		return nil
	}
	if err := k.erasePartial(); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	typed, err := k.typeText(text)
	k.partialLen = typed
	return err
}

func (k *Keyboard) CommitLine() error {
	return k.erasePartial()
}

func (k *Keyboard) erasePartial() error {
	if k.partialLen == 0 {
		return nil
	}
	n := k.partialLen
	k.partialLen = 0
	k.logger.Debug("erasing partial", slog.Int("chars", n))
	if err := k.injector.Backspace(n); err != nil {
		return fmt.Errorf("backspace %d: %w", n, err)
	}
	return nil
}

// typeText returns the number of runes that reached the window.
func (k *Keyboard) typeText(text string) (int, error) {
	if k.delay <= 0 {
		typed, err := k.injector.TypeText(text)
		if err != nil {
			return typed, fmt.Errorf("type text: %w", err)
		}
		return typed, nil
	}
	total := 0
	var errs []error
	for _, r := range text {
		typed, err := k.injector.TypeText(string(r))
		total += typed
		if err != nil {
			errs = append(errs, fmt.Errorf("type %q: %w", r, err))
			continue
		}
		time.Sleep(k.delay)
	}
	return total, errors.Join(errs...)
}
