// Package audio holds the fixed-rate mono block type and the producer side of
// the capture pipeline: resampling and the bounded hand-off queue.
package audio

import "time"

// Block is mono float32 PCM at a fixed sample rate. Blocks are not modified
// after they are produced.
type Block struct {
	Samples    []float32
	SampleRate int
}

// Duration reports the playback length of the block.
func (b Block) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Normalizer converts device-native audio into blocks at TargetRate.
type Normalizer struct {
	TargetRate int
}

func NewNormalizer(targetRate int) *Normalizer {
	return &Normalizer{TargetRate: targetRate}
}

// Normalize keeps the first channel of interleaved input and resamples it to
// the target rate. Empty input yields an empty block.
func (n *Normalizer) Normalize(interleaved []float32, channels int, sourceRate int) Block {
	mono := FirstChannel(interleaved, channels)
	return Block{
		Samples:    Resample(mono, sourceRate, n.TargetRate),
		SampleRate: n.TargetRate,
	}
}

// FirstChannel extracts channel 0 from interleaved samples. The result never
// aliases the input.
func FirstChannel(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return append([]float32(nil), interleaved...)
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		out[i] = interleaved[i*channels]
	}
	return out
}

// Resample converts samples from sourceRate to targetRate with linear
// interpolation. Matching rates return the input unchanged.
func Resample(samples []float32, sourceRate, targetRate int) []float32 {
	if sourceRate == targetRate || sourceRate <= 0 || targetRate <= 0 {
		return samples
	}
	if len(samples) == 0 {
		return []float32{}
	}
	ratio := float64(targetRate) / float64(sourceRate)
	n := int(float64(len(samples)) * ratio)
	out := make([]float32, n)
	last := len(samples) - 1
	for i := 0; i < n; i++ {
		pos := float64(i) / ratio
		if pos > float64(last) {
			pos = float64(last)
		}
		lo := int(pos)
		hi := lo + 1
		if hi > last {
			hi = last
		}
		frac := float32(pos - float64(lo))
		out[i] = samples[lo]*(1-frac) + samples[hi]*frac
	}
	return out
}

// Chunker regroups a sample stream into blocks of exactly Size samples. The
// remainder is kept for the next Push. It is not safe for concurrent use.
type Chunker struct {
	Size    int
	pending []float32
}

func NewChunker(size int) *Chunker {
	return &Chunker{Size: size}
}

// Push appends samples and returns every complete block. Each returned slice
// is freshly allocated. A non-positive Size passes samples through as one
// block.
func (c *Chunker) Push(samples []float32) [][]float32 {
	if c.Size <= 0 {
		if len(samples) == 0 {
			return nil
		}
		return [][]float32{samples}
	}
	c.pending = append(c.pending, samples...)
	var blocks [][]float32
	for len(c.pending) >= c.Size {
		block := make([]float32, c.Size)
		copy(block, c.pending)
		blocks = append(blocks, block)
		c.pending = c.pending[c.Size:]
	}
	if len(c.pending) == 0 {
		c.pending = nil
	} else if cap(c.pending) > 4*c.Size {
		c.pending = append([]float32(nil), c.pending...)
	}
	return blocks
}

// Pending is the number of samples waiting for a full block.
func (c *Chunker) Pending() int { return len(c.pending) }
