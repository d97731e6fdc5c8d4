package dictation

// UtteranceBuffer accumulates the samples of the active utterance, keeping at
// most maxSamples of the most recent audio.
type UtteranceBuffer struct {
	samples    []float32
	maxSamples int
}

func NewUtteranceBuffer(maxSamples int) *UtteranceBuffer {
	return &UtteranceBuffer{maxSamples: maxSamples}
}

// Append adds a block and trims the oldest samples past the cap.
func (b *UtteranceBuffer) Append(block []float32) {
	b.samples = append(b.samples, block...)
	if b.maxSamples > 0 && len(b.samples) > b.maxSamples {
		kept := make([]float32, b.maxSamples)
		copy(kept, b.samples[len(b.samples)-b.maxSamples:])
		b.samples = kept
	}
}

// Snapshot returns a copy of the buffered waveform.
func (b *UtteranceBuffer) Snapshot() []float32 {
	out := make([]float32, len(b.samples))
	copy(out, b.samples)
	return out
}

func (b *UtteranceBuffer) Len() int { return len(b.samples) }

func (b *UtteranceBuffer) Reset() {
	b.samples = nil
}
