package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"

	"github.com/loqalabs/loqa-dictate/internal/config"
)

func TestMockRecognizerGrowsWithAudio(t *testing.T) {
	r := NewMockRecognizer()
	ctx := context.Background()

	cases := []struct {
		ms   int
		want string
	}{
		{ms: 0, want: ""},
		{ms: 400, want: "the"},
		{ms: 600, want: "the qu"},
		{ms: 1200, want: "the quick brown"},
	}
	for _, tc := range cases {
		res, err := r.Transcribe(ctx, Request{Samples: make([]float32, 16*tc.ms), SampleRate: 16000})
		if err != nil {
			t.Fatalf("transcribe %dms: %v", tc.ms, err)
		}
		if res.Text != tc.want {
			t.Fatalf("%dms: expected %q, got %q", tc.ms, tc.want, res.Text)
		}
	}
}

func TestMockRecognizerHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockRecognizer().Transcribe(ctx, Request{Samples: make([]float32, 16000), SampleRate: 16000}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	if _, err := New(config.STTConfig{Mode: "mock"}); err != nil {
		t.Fatalf("mock: %v", err)
	}
	if _, err := New(config.STTConfig{Mode: "exec", Command: ""}); err == nil {
		t.Fatal("expected error for empty exec command")
	}
	if _, err := New(config.STTConfig{Mode: "bogus"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestWarmupUsesOneSecondOfSilence(t *testing.T) {
	rec := &recordingRecognizer{}
	if err := Warmup(context.Background(), rec, 16000); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	if len(rec.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(rec.requests))
	}
	req := rec.requests[0]
	if len(req.Samples) != 16000 || req.SampleRate != 16000 {
		t.Fatalf("unexpected warmup request: %d samples @ %d", len(req.Samples), req.SampleRate)
	}
	for _, s := range req.Samples {
		if s != 0 {
			t.Fatal("warmup audio should be silent")
		}
	}
}

func TestExecRecognizerPassesArgumentsAndParsesJSON(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := filepath.Join(dir, "stt.sh")
	body := "#!/bin/sh\necho \"$@\" > " + argsFile + "\necho '{\"text\":\"  hello world \",\"confidence\":0.75}'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	rec, err := NewExecRecognizer(config.STTConfig{Command: script + " --device cpu", Model: "small"})
	if err != nil {
		t.Fatalf("new exec recognizer: %v", err)
	}
	res, err := rec.Transcribe(context.Background(), Request{
		Samples:    make([]float32, 1600),
		SampleRate: 16000,
		Language:   "en",
		BeamSize:   5,
		Final:      true,
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "hello world" || res.Confidence != 0.75 {
		t.Fatalf("unexpected result: %+v", res)
	}

	raw, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	args := string(raw)
	for _, want := range []string{"--device cpu", "--audio ", "--model small", "--language en", "--beam-size 5", "--final"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in args %q", want, args)
		}
	}
}

func TestExecRecognizerReportsCommandFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fail.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho boom >&2\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	rec, err := NewExecRecognizer(config.STTConfig{Command: script})
	if err != nil {
		t.Fatalf("new exec recognizer: %v", err)
	}
	_, err = rec.Transcribe(context.Background(), Request{Samples: make([]float32, 160), SampleRate: 16000})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected failure carrying stderr, got %v", err)
	}
}

func TestOpenAIRecognizerPostsWav(t *testing.T) {
	var gotPath string
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			gotModel = r.FormValue("model")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " hello there "})
	}))
	defer server.Close()

	rec, err := NewOpenAIRecognizer(config.STTConfig{Endpoint: server.URL + "/v1/", Model: "large-v3-turbo", APIKey: "test"})
	if err != nil {
		t.Fatalf("new openai recognizer: %v", err)
	}
	res, err := rec.Transcribe(context.Background(), Request{Samples: make([]float32, 1600), SampleRate: 16000})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "hello there" {
		t.Fatalf("expected trimmed text, got %q", res.Text)
	}
	if gotPath != "/v1/audio/transcriptions" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotModel != "large-v3-turbo" {
		t.Fatalf("unexpected model %q", gotModel)
	}
}

func TestTempWavRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1}
	path, err := tempWav(samples, 16000)
	if err != nil {
		t.Fatalf("temp wav: %v", err)
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Fatalf("unexpected format: %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := []int{0, 16384, -16384, 32767}
	if len(buf.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i := range want {
		if diff := buf.Data[i] - want[i]; diff < -1 || diff > 1 {
			t.Fatalf("sample %d: expected ~%d, got %d", i, want[i], buf.Data[i])
		}
	}
}

type recordingRecognizer struct {
	requests []Request
}

func (r *recordingRecognizer) Transcribe(ctx context.Context, req Request) (TranscriptResult, error) {
	r.requests = append(r.requests, req)
	return TranscriptResult{}, nil
}

func (r *recordingRecognizer) Close() error { return nil }
