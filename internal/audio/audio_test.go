package audio

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestResamplePassThrough(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d changed: %v != %v", i, out[i], in[i])
		}
	}
}

func TestResampleDownsampleLength(t *testing.T) {
	in := make([]float32, 4800) // 100ms at 48kHz
	out := Resample(in, 48000, 16000)
	if len(out) != 1600 {
		t.Fatalf("expected 1600 samples, got %d", len(out))
	}
}

func TestResampleInterpolates(t *testing.T) {
	in := []float32{0, 1}
	out := Resample(in, 8000, 16000)
	want := []float32{0, 0.5, 1, 1}
	if len(out) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(out))
	}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Fatalf("sample %d: expected %v, got %v", i, want[i], out[i])
		}
	}
}

func TestResampleEmpty(t *testing.T) {
	out := Resample(nil, 44100, 16000)
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil block, got %v", out)
	}
}

func TestNormalizeFirstChannel(t *testing.T) {
	n := NewNormalizer(16000)
	interleaved := []float32{0.1, -1, 0.2, -1, 0.3, -1}
	b := n.Normalize(interleaved, 2, 16000)
	if b.SampleRate != 16000 {
		t.Fatalf("unexpected rate %d", b.SampleRate)
	}
	want := []float32{0.1, 0.2, 0.3}
	for i := range want {
		if b.Samples[i] != want[i] {
			t.Fatalf("sample %d: expected %v, got %v", i, want[i], b.Samples[i])
		}
	}
}

func TestNormalizeEmptyBlock(t *testing.T) {
	b := NewNormalizer(16000).Normalize(nil, 1, 48000)
	if len(b.Samples) != 0 {
		t.Fatalf("expected empty block, got %d samples", len(b.Samples))
	}
}

func TestBlockDuration(t *testing.T) {
	b := Block{Samples: make([]float32, 1600), SampleRate: 16000}
	if b.Duration() != 100*time.Millisecond {
		t.Fatalf("expected 100ms, got %v", b.Duration())
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(2)
	for i := 0; i < 2; i++ {
		if !q.Offer(Block{Samples: []float32{float32(i)}}) {
			t.Fatalf("offer %d rejected", i)
		}
	}
	if q.Offer(Block{Samples: []float32{9}}) {
		t.Fatal("expected full queue to reject block")
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped block, got %d", q.Dropped())
	}

	b, ok := q.TryPoll()
	if !ok || b.Samples[0] != 0 {
		t.Fatalf("expected oldest block first, got %v", b.Samples)
	}
}

func TestQueuePollTimeout(t *testing.T) {
	q := NewQueue(1)
	start := time.Now()
	if _, ok := q.Poll(context.Background(), 20*time.Millisecond); ok {
		t.Fatal("expected timeout on empty queue")
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("poll returned before timeout")
	}
}

func TestQueuePollCancelled(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := q.Poll(ctx, time.Second); ok {
		t.Fatal("expected cancelled poll to return nothing")
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	pcm := []byte{0x00, 0x40, 0x00, 0xC0} // 16384, -16384
	samples, err := PCM16ToFloat32(pcm)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if samples[0] != 0.5 || samples[1] != -0.5 {
		t.Fatalf("unexpected samples %v", samples)
	}
	if _, err := PCM16ToFloat32([]byte{1}); err == nil {
		t.Fatal("expected error for odd payload")
	}
	ints := Float32ToInt16([]float32{2, -2, 0})
	if ints[0] != 32767 || ints[1] != -32768 || ints[2] != 0 {
		t.Fatalf("expected clipping, got %v", ints)
	}
}

func TestChunkerEmitsFixedBlocksAndKeepsContinuity(t *testing.T) {
	c := NewChunker(4)
	var got []float32
	next := float32(0)
	for _, n := range []int{1, 3, 5, 2, 7} {
		frame := make([]float32, n)
		for i := range frame {
			frame[i] = next
			next++
		}
		for _, block := range c.Push(frame) {
			if len(block) != 4 {
				t.Fatalf("expected 4-sample blocks, got %d", len(block))
			}
			got = append(got, block...)
		}
	}
	if len(got) != 16 || c.Pending() != 2 {
		t.Fatalf("expected 16 samples emitted and 2 pending, got %d and %d", len(got), c.Pending())
	}
	for i, v := range got {
		if v != float32(i) {
			t.Fatalf("sample %d out of order: %v", i, got)
		}
	}
}

func TestChunkerWithoutSizePassesThrough(t *testing.T) {
	c := NewChunker(0)
	blocks := c.Push([]float32{1, 2, 3})
	if len(blocks) != 1 || len(blocks[0]) != 3 {
		t.Fatalf("expected one pass-through block, got %v", blocks)
	}
	if blocks := c.Push(nil); blocks != nil {
		t.Fatalf("expected nothing for empty input, got %v", blocks)
	}
}
