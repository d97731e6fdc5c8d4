package output

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-shellwords"
)

// ExecInjector drives an external tool such as xdotool or wtype. The text is
// appended as the last argument of the type command; the backspace command
// deletes one character per run.
type ExecInjector struct {
	typeCmd      []string
	backspaceCmd []string
}

func NewExecInjector(typeCommand, backspaceCommand string) (*ExecInjector, error) {
	parser := shellwords.NewParser()
	typeArgs, err := parser.Parse(typeCommand)
	if err != nil {
		return nil, fmt.Errorf("parse type command: %w", err)
	}
	if len(typeArgs) == 0 {
		return nil, fmt.Errorf("type command is empty")
	}
	backArgs, err := parser.Parse(backspaceCommand)
	if err != nil {
		return nil, fmt.Errorf("parse backspace command: %w", err)
	}
	if len(backArgs) == 0 {
		return nil, fmt.Errorf("backspace command is empty")
	}
	return &ExecInjector{typeCmd: typeArgs, backspaceCmd: backArgs}, nil
}

func (e *ExecInjector) TypeText(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	args := append(append([]string{}, e.typeCmd[1:]...), text)
	if err := run(e.typeCmd[0], args); err != nil {
		return 0, err
	}
	return utf8.RuneCountInString(text), nil
}

func (e *ExecInjector) Backspace(n int) error {
	for i := 0; i < n; i++ {
		if err := run(e.backspaceCmd[0], e.backspaceCmd[1:]); err != nil {
			return err
		}
	}
	return nil
}

func run(name string, args []string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
