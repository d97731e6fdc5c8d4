package output

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// Screen redraws the current line in place: confirmed text is written plain,
// partial text is appended faint and erased with a carriage-return redraw.
type Screen struct {
	w          io.Writer
	line       strings.Builder
	partialLen int
	partial    lipgloss.Style
}

func NewScreen(w io.Writer) *Screen {
	renderer := lipgloss.NewRenderer(w)
	return &Screen{
		w:       w,
		partial: renderer.NewStyle().Faint(true),
	}
}

func (s *Screen) Confirmed(text string) error {
	if text == "" {
		return nil
	}
	if err := s.clearPartial(); err != nil {
		return err
	}
	s.line.WriteString(text)
	_, err := io.WriteString(s.w, text)
	return err
}

func (s *Screen) Partial(text string) error {
	if err := s.clearPartial(); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	if _, err := io.WriteString(s.w, s.partial.Render(text)); err != nil {
		return err
	}
	s.partialLen = utf8.RuneCountInString(text)
	return nil
}

func (s *Screen) CommitLine() error {
	if err := s.clearPartial(); err != nil {
		return err
	}
	if s.line.Len() == 0 {
		return nil
	}
	s.line.Reset()
	_, err := io.WriteString(s.w, "\n")
	return err
}

func (s *Screen) clearPartial() error {
	if s.partialLen == 0 {
		return nil
	}
	line := s.line.String()
	redraw := "\r" + line + strings.Repeat(" ", s.partialLen) + "\r" + line
	s.partialLen = 0
	_, err := io.WriteString(s.w, redraw)
	return err
}
