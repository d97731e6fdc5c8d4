package dictation

import "time"

// Scheduler throttles recognizer calls to one per interval, and only once
// enough audio has been buffered.
type Scheduler struct {
	interval   time.Duration
	minSamples int
	now        func() time.Time
	last       time.Time
}

// NewScheduler returns a scheduler using now as its clock; nil means time.Now.
func NewScheduler(interval time.Duration, minSamples int, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{interval: interval, minSamples: minSamples, now: now}
}

// Due reports whether a transcription should run for the given amount of
// buffered audio. A true result records the call time.
func (s *Scheduler) Due(buffered int) bool {
	now := s.now()
	if !s.last.IsZero() && now.Sub(s.last) < s.interval {
		return false
	}
	if buffered < s.minSamples {
		return false
	}
	s.last = now
	return true
}

// Reset forgets the last run so the next utterance may transcribe immediately.
func (s *Scheduler) Reset() {
	s.last = time.Time{}
}
