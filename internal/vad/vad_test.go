package vad

import (
	"errors"
	"testing"

	"github.com/loqalabs/loqa-dictate/internal/audio"
	"github.com/loqalabs/loqa-dictate/internal/config"
)

type scriptedClassifier struct {
	scores  []float32
	calls   int
	resets  int
	lengths []int
	err     error
}

func (s *scriptedClassifier) Classify(window []float32, _ int) (float32, error) {
	s.lengths = append(s.lengths, len(window))
	if s.err != nil {
		return 0, s.err
	}
	p := float32(0)
	if s.calls < len(s.scores) {
		p = s.scores[s.calls]
	}
	s.calls++
	return p, nil
}

func (s *scriptedClassifier) Reset()       { s.resets++ }
func (s *scriptedClassifier) Close() error { return nil }

func block(n int) audio.Block {
	return audio.Block{Samples: make([]float32, n), SampleRate: 16000}
}

func TestDetectorPadsToWindow(t *testing.T) {
	c := &scriptedClassifier{}
	d, err := NewDetector(c, 0.5, 512)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.HasSpeech(block(1600)); err != nil {
		t.Fatalf("has speech: %v", err)
	}
	if c.calls != 4 {
		t.Fatalf("expected 4 windows for 1600 samples, got %d", c.calls)
	}
	for _, n := range c.lengths {
		if n != 512 {
			t.Fatalf("expected padded 512-sample windows, got %d", n)
		}
	}
}

func TestDetectorAnyWindowAboveThreshold(t *testing.T) {
	c := &scriptedClassifier{scores: []float32{0.1, 0.7, 0.2, 0.1}}
	d, _ := NewDetector(c, 0.5, 512)
	speech, err := d.HasSpeech(block(1600))
	if err != nil {
		t.Fatal(err)
	}
	if !speech {
		t.Fatal("expected speech when one window exceeds threshold")
	}
	if c.calls != 2 {
		t.Fatalf("expected detection to stop at the first speech window, got %d calls", c.calls)
	}
}

func TestDetectorSilence(t *testing.T) {
	c := &scriptedClassifier{scores: []float32{0.49, 0.2, 0.3, 0.0}}
	d, _ := NewDetector(c, 0.5, 512)
	speech, err := d.HasSpeech(block(1600))
	if err != nil {
		t.Fatal(err)
	}
	if speech {
		t.Fatal("expected silence below threshold")
	}
}

func TestDetectorResetsPerBlock(t *testing.T) {
	c := &scriptedClassifier{}
	d, _ := NewDetector(c, 0.5, 512)
	for i := 0; i < 3; i++ {
		_, _ = d.HasSpeech(block(512))
	}
	if c.resets != 3 {
		t.Fatalf("expected one reset per block, got %d", c.resets)
	}
}

func TestDetectorPropagatesError(t *testing.T) {
	c := &scriptedClassifier{err: errors.New("model crashed")}
	d, _ := NewDetector(c, 0.5, 512)
	if _, err := d.HasSpeech(block(512)); err == nil {
		t.Fatal("expected classifier error")
	}
}

func TestDetectorEmptyBlock(t *testing.T) {
	c := &scriptedClassifier{}
	d, _ := NewDetector(c, 0.5, 512)
	speech, err := d.HasSpeech(block(0))
	if err != nil || speech {
		t.Fatalf("expected silent empty block, got %v %v", speech, err)
	}
}

func TestNewDetectorValidates(t *testing.T) {
	if _, err := NewDetector(&scriptedClassifier{}, 1.2, 512); err == nil {
		t.Fatal("expected threshold error")
	}
	if _, err := NewDetector(&scriptedClassifier{}, 0.5, 0); err == nil {
		t.Fatal("expected window size error")
	}
}

func TestEnergyClassifier(t *testing.T) {
	e := NewEnergyClassifier(0.02)
	silent, _ := e.Classify(make([]float32, 512), 16000)
	if silent != 0 {
		t.Fatalf("expected zero for silence, got %v", silent)
	}
	loud := make([]float32, 512)
	for i := range loud {
		loud[i] = 0.5
	}
	p, _ := e.Classify(loud, 16000)
	if p != 1 {
		t.Fatalf("expected saturated probability, got %v", p)
	}
	half := make([]float32, 512)
	for i := range half {
		half[i] = 0.01
	}
	p, _ = e.Classify(half, 16000)
	if p < 0.49 || p > 0.51 {
		t.Fatalf("expected ~0.5 at half reference, got %v", p)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	c, err := New(config.VADConfig{Mode: "energy", EnergyReference: 0.02})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*EnergyClassifier); !ok {
		t.Fatalf("expected energy classifier, got %T", c)
	}
	if _, err := New(config.VADConfig{Mode: "webrtc"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
