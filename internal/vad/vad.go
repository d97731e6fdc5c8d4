// Package vad decides whether an audio block contains speech.
//
// Backends implement Classifier and score one fixed-size window at a time.
// Detector pads a block to whole windows and flags speech when any window
// reaches the threshold. The detector resets the classifier before every
// block, so blocks are judged independently of each other.
package vad

import (
	"fmt"

	"github.com/loqalabs/loqa-dictate/internal/audio"
	"github.com/loqalabs/loqa-dictate/internal/config"
)

// Classifier scores one window of mono samples with a speech probability in
// [0, 1]. Reset clears any recurrent state; stateless backends ignore it.
type Classifier interface {
	Classify(window []float32, sampleRate int) (float32, error)
	Reset()
	Close() error
}

// Detector turns per-window probabilities into a per-block decision.
type Detector struct {
	classifier Classifier
	threshold  float32
	windowSize int
	window     []float32
}

func NewDetector(classifier Classifier, threshold float64, windowSize int) (*Detector, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	return &Detector{
		classifier: classifier,
		threshold:  float32(threshold),
		windowSize: windowSize,
		window:     make([]float32, windowSize),
	}, nil
}

// HasSpeech reports whether any window of the block scores at or above the
// threshold. The trailing window is zero padded.
func (d *Detector) HasSpeech(block audio.Block) (bool, error) {
	d.classifier.Reset()
	samples := block.Samples
	for start := 0; start < len(samples); start += d.windowSize {
		end := start + d.windowSize
		if end > len(samples) {
			end = len(samples)
		}
		n := copy(d.window, samples[start:end])
		clear(d.window[n:])
		p, err := d.classifier.Classify(d.window, block.SampleRate)
		if err != nil {
			return false, fmt.Errorf("classify window at %d: %w", start, err)
		}
		if p >= d.threshold {
			return true, nil
		}
	}
	return false, nil
}

func (d *Detector) Reset() {
	d.classifier.Reset()
}

func (d *Detector) Close() error {
	return d.classifier.Close()
}

// New builds the classifier selected by cfg.Mode.
func New(cfg config.VADConfig) (Classifier, error) {
	switch cfg.Mode {
	case "energy", "":
		return NewEnergyClassifier(cfg.EnergyReference), nil
	case "silero":
		return NewSileroClassifier(cfg.ModelPath, cfg.RuntimeLibrary, cfg.WindowSize)
	default:
		return nil, fmt.Errorf("vad: unknown mode %q (supported: energy, silero)", cfg.Mode)
	}
}
