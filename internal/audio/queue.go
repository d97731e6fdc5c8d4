package audio

import (
	"context"
	"sync/atomic"
	"time"
)

// Queue is the bounded hand-off between the capture callback and the single
// consumer loop. Offer never blocks; a full queue drops the incoming block.
type Queue struct {
	ch      chan Block
	dropped atomic.Int64
	offered atomic.Int64
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Block, capacity)}
}

// Offer enqueues b and reports whether it was accepted.
func (q *Queue) Offer(b Block) bool {
	q.offered.Add(1)
	select {
	case q.ch <- b:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Poll waits up to timeout for a block. The boolean is false on timeout or
// when ctx is done.
func (q *Queue) Poll(ctx context.Context, timeout time.Duration) (Block, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-q.ch:
		return b, true
	case <-timer.C:
		return Block{}, false
	case <-ctx.Done():
		return Block{}, false
	}
}

// TryPoll returns a pending block without waiting.
func (q *Queue) TryPoll() (Block, bool) {
	select {
	case b := <-q.ch:
		return b, true
	default:
		return Block{}, false
	}
}

func (q *Queue) Len() int       { return len(q.ch) }
func (q *Queue) Dropped() int64 { return q.dropped.Load() }
func (q *Queue) Offered() int64 { return q.offered.Load() }
