package output

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/micmonay/keybd_event"

	"github.com/loqalabs/loqa-dictate/internal/config"
)

type fakeInjector struct {
	typed      strings.Builder
	backspaces int
	calls      []string
	err        error
	// skip lists runes the fake has no key for, like a layout-bound backend.
	skip string
}

func (f *fakeInjector) TypeText(text string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, r := range text {
		if strings.ContainsRune(f.skip, r) {
			continue
		}
		f.typed.WriteRune(r)
		n++
	}
	f.calls = append(f.calls, "type:"+text)
	if n < utf8.RuneCountInString(text) {
		return n, errors.New("unsupported characters")
	}
	return n, nil
}

func (f *fakeInjector) Backspace(n int) error {
	if f.err != nil {
		return f.err
	}
	f.backspaces += n
	f.calls = append(f.calls, "back:"+strings.Repeat("<", n))
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScreenRedrawsPartialInPlace(t *testing.T) {
	var out bytes.Buffer
	s := NewScreen(&out)

	if err := s.Confirmed("hello "); err != nil {
		t.Fatalf("confirmed: %v", err)
	}
	if err := s.Partial("wor"); err != nil {
		t.Fatalf("partial: %v", err)
	}
	if err := s.Partial("world"); err != nil {
		t.Fatalf("partial: %v", err)
	}
	if err := s.Confirmed("world "); err != nil {
		t.Fatalf("confirmed: %v", err)
	}
	if err := s.CommitLine(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	want := "hello " +
		"wor" +
		"\rhello    \rhello " + "world" +
		"\rhello      \rhello " + "world " +
		"\n"
	if out.String() != want {
		t.Fatalf("unexpected output:\n got %q\nwant %q", out.String(), want)
	}
}

func TestScreenIgnoresEmptyConfirmedAndBlankLines(t *testing.T) {
	var out bytes.Buffer
	s := NewScreen(&out)
	if err := s.Confirmed(""); err != nil {
		t.Fatalf("confirmed: %v", err)
	}
	if err := s.CommitLine(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}

func TestKeyboardDeletesExactlyLastPartial(t *testing.T) {
	partials := [][]string{
		{"a"},
		{"hello", "hello wor", "hi"},
		{"naïve", "größer als"},
		{"x", ""},
	}
	for _, seq := range partials {
		inj := &fakeInjector{}
		k := NewKeyboard(inj, 0, true, testLogger())
		var last string
		for _, p := range seq {
			if err := k.Partial(p); err != nil {
				t.Fatalf("partial: %v", err)
			}
			last = p
		}
		before := inj.backspaces
		if err := k.Confirmed("done "); err != nil {
			t.Fatalf("confirmed: %v", err)
		}
		if got, want := inj.backspaces-before, utf8.RuneCountInString(last); got != want {
			t.Fatalf("%q: expected %d deletions before confirm, got %d", seq, want, got)
		}
		if !strings.HasSuffix(inj.typed.String(), "done ") {
			t.Fatalf("expected confirmed text typed last, got %q", inj.typed.String())
		}
	}
}

func TestKeyboardErasesOnlyWhatWasTyped(t *testing.T) {
	inj := &fakeInjector{skip: ",."}
	k := NewKeyboard(inj, 0, true, testLogger())
	if err := k.Partial("hello, world."); err == nil {
		t.Fatal("expected skipped characters to be reported")
	}
	shown := utf8.RuneCountInString(inj.typed.String())
	if err := k.Confirmed("x"); err != nil {
		t.Fatalf("confirmed: %v", err)
	}
	if inj.backspaces != shown {
		t.Fatalf("typed %d characters but deleted %d", shown, inj.backspaces)
	}

	inj = &fakeInjector{skip: "é"}
	k = NewKeyboard(inj, 1, true, testLogger())
	if err := k.Partial("café au lait"); err == nil {
		t.Fatal("expected skipped characters to be reported")
	}
	if err := k.CommitLine(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if inj.backspaces != 11 {
		t.Fatalf("expected 11 deletions with per-character typing, got %d", inj.backspaces)
	}
}

func TestKeyboardSuppressesPartialsWhenDisabled(t *testing.T) {
	inj := &fakeInjector{}
	k := NewKeyboard(inj, 0, false, testLogger())
	if err := k.Partial("preview"); err != nil {
		t.Fatalf("partial: %v", err)
	}
	if err := k.Confirmed("text"); err != nil {
		t.Fatalf("confirmed: %v", err)
	}
	if err := k.CommitLine(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if inj.backspaces != 0 || inj.typed.String() != "text" {
		t.Fatalf("unexpected injection: typed %q, %d backspaces", inj.typed.String(), inj.backspaces)
	}
}

func TestKeyboardCommitLineErasesPartial(t *testing.T) {
	inj := &fakeInjector{}
	k := NewKeyboard(inj, 0, true, testLogger())
	_ = k.Partial("abc")
	if err := k.CommitLine(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if inj.backspaces != 3 {
		t.Fatalf("expected 3 deletions, got %d", inj.backspaces)
	}
	if err := k.CommitLine(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if inj.backspaces != 3 {
		t.Fatal("second commit should not delete anything")
	}
}

func TestKeyboardDelayTypesPerCharacter(t *testing.T) {
	inj := &fakeInjector{}
	k := NewKeyboard(inj, 1, false, testLogger())
	if err := k.Confirmed("héy"); err != nil {
		t.Fatalf("confirmed: %v", err)
	}
	want := []string{"type:h", "type:é", "type:y"}
	if strings.Join(inj.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected calls %q", inj.calls)
	}
}

func TestKeyboardPropagatesInjectionErrors(t *testing.T) {
	boom := errors.New("rejected")
	k := NewKeyboard(&fakeInjector{err: boom}, 0, true, testLogger())
	if err := k.Confirmed("x"); !errors.Is(err, boom) {
		t.Fatalf("expected injection error, got %v", err)
	}
}

func TestExecInjectorRunsCommands(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "log.txt")
	script := filepath.Join(dir, "inject.sh")
	body := "#!/bin/sh\necho \"$@\" >> " + logFile + "\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	inj, err := NewExecInjector(script+" type --", script+" key BackSpace")
	if err != nil {
		t.Fatalf("new exec injector: %v", err)
	}
	typed, err := inj.TypeText("hello world")
	if err != nil {
		t.Fatalf("type: %v", err)
	}
	if typed != 11 {
		t.Fatalf("expected 11 runes typed, got %d", typed)
	}
	if err := inj.Backspace(2); err != nil {
		t.Fatalf("backspace: %v", err)
	}

	raw, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	want := "type -- hello world\nkey BackSpace\nkey BackSpace\n"
	if string(raw) != want {
		t.Fatalf("unexpected invocations:\n got %q\nwant %q", string(raw), want)
	}
}

func TestExecInjectorRejectsEmptyCommands(t *testing.T) {
	if _, err := NewExecInjector("", "xdotool key BackSpace"); err == nil {
		t.Fatal("expected error for empty type command")
	}
	if _, err := NewExecInjector("xdotool type", ""); err == nil {
		t.Fatal("expected error for empty backspace command")
	}
}

func TestKeyFor(t *testing.T) {
	cases := []struct {
		r     rune
		key   int
		shift bool
		ok    bool
	}{
		{'a', keybd_event.VK_A, false, true},
		{'Z', keybd_event.VK_Z, true, true},
		{'7', keybd_event.VK_7, false, true},
		{' ', keybd_event.VK_SPACE, false, true},
		{'.', keybd_event.VK_SP10, false, true},
		{',', keybd_event.VK_SP9, false, true},
		{'?', keybd_event.VK_SP11, true, true},
		{'!', keybd_event.VK_1, true, true},
		{'é', 0, false, false},
	}
	for _, tc := range cases {
		key, shift, ok := keyFor(tc.r)
		if ok != tc.ok || (ok && (key != tc.key || shift != tc.shift)) {
			t.Fatalf("keyFor(%q): got (%d, %v, %v)", tc.r, key, shift, ok)
		}
	}
}

func TestNewSelectsSink(t *testing.T) {
	cfg := config.Default().Output
	sink, err := New(cfg, io.Discard, testLogger())
	if err != nil {
		t.Fatalf("new screen sink: %v", err)
	}
	if _, ok := sink.(*Screen); !ok {
		t.Fatalf("expected screen sink, got %T", sink)
	}

	cfg.Mode = "keyboard"
	sink, err = New(cfg, io.Discard, testLogger())
	if err != nil {
		t.Fatalf("new keyboard sink: %v", err)
	}
	if _, ok := sink.(*Keyboard); !ok {
		t.Fatalf("expected keyboard sink, got %T", sink)
	}

	cfg.Mode = "printer"
	if _, err := New(cfg, io.Discard, testLogger()); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
