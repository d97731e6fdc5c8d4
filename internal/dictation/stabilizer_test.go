package dictation

import (
	"strings"
	"testing"
)

func TestStabilizerConfirmsOnWordBoundaries(t *testing.T) {
	s := NewStabilizer()
	hypotheses := []string{"hello wor", "hello world", "hello world today"}
	want := []string{"", "hello ", "world "}

	for i, h := range hypotheses {
		got := s.Observe(h).Confirmed
		if got != want[i] {
			t.Fatalf("hypothesis %d (%q): expected confirmed %q, got %q", i, h, want[i], got)
		}
	}
	if s.Confirmed() != "hello world " {
		t.Fatalf("unexpected confirmed prefix %q", s.Confirmed())
	}
}

func TestStabilizerPartialIsUnconfirmedTail(t *testing.T) {
	s := NewStabilizer()
	if got := s.Observe("hello wor").Partial; got != "hello wor" {
		t.Fatalf("expected whole hypothesis as partial, got %q", got)
	}
	if got := s.Observe("hello world").Partial; got != "world" {
		t.Fatalf("expected partial %q, got %q", "world", got)
	}
	if got := s.Observe("hello").Partial; got != "" {
		t.Fatalf("expected empty partial for shorter hypothesis, got %q", got)
	}
}

func TestStabilizerEmptyHypothesisKeepsConfirmed(t *testing.T) {
	s := NewStabilizer()
	s.Observe("one two three")
	s.Observe("one two three four")
	before := s.Confirmed()
	if before == "" {
		t.Fatal("expected some confirmed text")
	}

	update := s.Observe("")
	if update.Confirmed != "" || update.Partial != "" {
		t.Fatalf("expected no update for empty hypothesis, got %+v", update)
	}
	if s.Previous() != "" {
		t.Fatalf("expected previous hypothesis reset, got %q", s.Previous())
	}
	if s.Confirmed() != before {
		t.Fatalf("confirmed changed from %q to %q", before, s.Confirmed())
	}

	// Agreement restarts from the next hypothesis, so nothing new is
	// confirmed until two non-empty hypotheses agree again.
	if got := s.Observe("one two three four five").Confirmed; got != "" {
		t.Fatalf("expected no confirmation right after reset, got %q", got)
	}
}

func TestStabilizerNeverRetracts(t *testing.T) {
	sequences := [][]string{
		{"the cat", "the cat sat", "the dog sat on", "the dog sat on the mat", "a dog"},
		{"we will", "", "we will go", "we will go home", "we shall go home now"},
		{"héllo wörld", "héllo wörld again", "héllo wörld again and"},
		{"a b c d", "a b x d", "a b x d e", "z"},
		{"the world is", "the world", "the worldwide web", "the worldwide web is"},
	}
	for _, seq := range sequences {
		s := NewStabilizer()
		var emitted strings.Builder
		prev := ""
		for _, h := range seq {
			update := s.Observe(h)
			emitted.WriteString(update.Confirmed)
			if update.Confirmed != "" && !strings.HasPrefix(s.Previous(), s.Confirmed()) {
				t.Fatalf("%v: confirmed %q is not a prefix of hypothesis %q", seq, s.Confirmed(), s.Previous())
			}
			if len(s.Confirmed()) < len(prev) || !strings.HasPrefix(s.Confirmed(), prev) {
				t.Fatalf("%v: confirmed retracted from %q to %q", seq, prev, s.Confirmed())
			}
			if emitted.String() != s.Confirmed() {
				t.Fatalf("%v: increments %q do not add up to %q", seq, emitted.String(), s.Confirmed())
			}
			prev = s.Confirmed()
		}
	}
}

func TestStabilizerWaitsForNewestHypothesisToFinishWord(t *testing.T) {
	s := NewStabilizer()
	s.Observe("the world is")
	update := s.Observe("the world")
	if update.Confirmed != "the " || update.Partial != "world" {
		t.Fatalf("expected only %q confirmed, got %+v", "the ", update)
	}
	if !strings.HasPrefix(s.Previous(), s.Confirmed()) {
		t.Fatalf("confirmed %q is not a prefix of %q", s.Confirmed(), s.Previous())
	}

	update = s.Observe("the worldwide web")
	if update.Confirmed != "" || update.Partial != "worldwide web" {
		t.Fatalf("expected the unfinished word to stay correctable, got %+v", update)
	}
	if got := s.Observe("the worldwide web is").Confirmed; got != "worldwide web " {
		t.Fatalf("expected %q confirmed, got %q", "worldwide web ", got)
	}
}

func TestStabilizerFlush(t *testing.T) {
	s := NewStabilizer()
	s.Observe("hello wor")
	s.Observe("hello world")

	if got := s.Flush("hello world today."); got != "world today." {
		t.Fatalf("expected remaining %q, got %q", "world today.", got)
	}
	if got := s.Flush(""); got != "world" {
		t.Fatalf("expected fallback to previous hypothesis, got %q", got)
	}

	s.Reset()
	if s.Confirmed() != "" || s.Previous() != "" {
		t.Fatal("expected reset to clear state")
	}
	if got := s.Flush(""); got != "" {
		t.Fatalf("expected nothing to flush after reset, got %q", got)
	}
}

func TestCommonWordPrefix(t *testing.T) {
	cases := []struct {
		a, b string
		want string
	}{
		{"", "hello", ""},
		{"hello wor", "hello world", "hello "},
		{"hello world", "hello world today", "hello world "},
		{"hello world today", "hello world", "hello "},
		{"the world is", "the world", "the "},
		{"hello world", "hello world", "hello "},
		{"hello there", "hello world", "hello "},
		{"hel", "hello", ""},
		{"abc", "xyz", ""},
		{"grüße dich", "grüße dir", "grüße "},
		{"naïve", "naïve idea", "naïve "},
	}
	for _, tc := range cases {
		if got := commonWordPrefix(tc.a, tc.b); got != tc.want {
			t.Fatalf("commonWordPrefix(%q, %q): expected %q, got %q", tc.a, tc.b, tc.want, got)
		}
	}
}
