package vad

import "math"

// EnergyClassifier maps window RMS onto a probability. A window whose RMS
// equals half the reference level scores 0.5; the score saturates at 1.
type EnergyClassifier struct {
	reference float64
}

func NewEnergyClassifier(reference float64) *EnergyClassifier {
	if reference <= 0 {
		reference = 0.02
	}
	return &EnergyClassifier{reference: reference}
}

func (e *EnergyClassifier) Classify(window []float32, _ int) (float32, error) {
	if len(window) == 0 {
		return 0, nil
	}
	var sum float64
	for _, s := range window {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(window)))
	p := rms / e.reference
	if p > 1 {
		p = 1
	}
	return float32(p), nil
}

func (e *EnergyClassifier) Reset() {}

func (e *EnergyClassifier) Close() error { return nil }
