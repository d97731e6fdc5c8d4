package dictation

import (
	"strings"
	"unicode/utf8"
)

// Update is the result of feeding one hypothesis to the stabilizer.
type Update struct {
	// Confirmed is the newly confirmed text, appended to what was confirmed
	// before. Empty when nothing new became stable.
	Confirmed string
	// Partial is the unconfirmed tail of the hypothesis.
	Partial string
}

// Stabilizer applies local agreement to successive hypotheses of a growing
// utterance. Confirmed text only grows and is never retracted.
type Stabilizer struct {
	previous  string
	confirmed string
}

func NewStabilizer() *Stabilizer {
	return &Stabilizer{}
}

// Observe compares hypothesis with the previous one and returns what became
// stable.
func (s *Stabilizer) Observe(hypothesis string) Update {
	if hypothesis == "" {
		s.previous = ""
		return Update{}
	}

	var update Update
	agreed := commonWordPrefix(s.previous, hypothesis)
	if len(agreed) > len(s.confirmed) && strings.HasPrefix(agreed, s.confirmed) {
		update.Confirmed = agreed[len(s.confirmed):]
		s.confirmed = agreed
	}
	s.previous = hypothesis
	update.Partial = tailAfter(hypothesis, s.confirmed)
	return update
}

// Flush returns the text of final not yet confirmed, trimmed. An empty final
// hypothesis falls back to the last one seen.
func (s *Stabilizer) Flush(final string) string {
	if final == "" {
		final = s.previous
	}
	return strings.TrimSpace(tailAfter(final, s.confirmed))
}

func (s *Stabilizer) Reset() {
	s.previous = ""
	s.confirmed = ""
}

func (s *Stabilizer) Confirmed() string { return s.confirmed }
func (s *Stabilizer) Previous() string  { return s.previous }

// commonWordPrefix returns the longest common prefix of the previous
// hypothesis a and the new hypothesis b, cut back to the end of the last
// complete word. A last word that ends a also counts as complete when b
// continues it with a space; the result is then always a prefix of b.
func commonWordPrefix(a, b string) string {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	for n > 0 && n < len(a) && !utf8.RuneStart(a[n]) {
		n--
	}

	if n > 0 && n == len(a) && n < len(b) && b[n] == ' ' {
		return b[:n+1]
	}

	common := a[:n]
	idx := strings.LastIndexByte(common, ' ')
	if idx < 0 {
		return ""
	}
	return common[:idx+1]
}

// tailAfter returns text past the confirmed prefix, snapped to a rune boundary.
func tailAfter(text, confirmed string) string {
	start := len(confirmed)
	if start >= len(text) {
		return ""
	}
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	return text[start:]
}
