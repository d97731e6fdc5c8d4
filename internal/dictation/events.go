package dictation

import "time"

type EventType string

const (
	EventStarted   EventType = "started"
	EventPartial   EventType = "partial"
	EventConfirmed EventType = "confirmed"
	EventEnded     EventType = "ended"
)

// Event describes a change in the active utterance. For EventEnded, Text is
// the whole utterance as emitted.
type Event struct {
	Type        EventType
	UtteranceID string
	Text        string
	Time        time.Time
}

// EventHandler receives pipeline events on the consumer goroutine and must not
// block.
type EventHandler func(Event)
