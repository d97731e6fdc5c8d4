package eventstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/loqa-dictate/internal/dictation"
)

const recorderBuffer = 256

// Recorder persists pipeline events off the consumer goroutine. Partial
// events are not stored.
type Recorder struct {
	store    *Store
	source   string
	language string
	log      *slog.Logger

	events chan dictation.Event
	wg     sync.WaitGroup
}

func NewRecorder(store *Store, source, language string, log *slog.Logger) *Recorder {
	r := &Recorder{
		store:    store,
		source:   source,
		language: language,
		log:      log.With(slog.String("component", "recorder")),
		events:   make(chan dictation.Event, recorderBuffer),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Handle is a dictation.EventHandler. It never blocks; events are dropped
// when the writer falls behind.
func (r *Recorder) Handle(ev dictation.Event) {
	if ev.Type == dictation.EventPartial {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.log.Warn("history writer behind, dropping event", slog.String("type", string(ev.Type)))
	}
}

// Close writes any queued events and stops the writer.
func (r *Recorder) Close() {
	close(r.events)
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for ev := range r.events {
		if err := r.write(ev); err != nil {
			r.log.Warn("failed to record event", slog.String("type", string(ev.Type)), slog.String("error", err.Error()))
		}
	}
}

func (r *Recorder) write(ev dictation.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch ev.Type {
	case dictation.EventStarted:
		return r.store.BeginUtterance(ctx, Utterance{
			ID:        ev.UtteranceID,
			Source:    r.source,
			Language:  r.language,
			StartedAt: ev.Time,
		})
	case dictation.EventConfirmed:
		return r.store.AppendEvent(ctx, Event{UtteranceID: ev.UtteranceID, Type: string(ev.Type), Text: ev.Text, CreatedAt: ev.Time})
	case dictation.EventEnded:
		if err := r.store.AppendEvent(ctx, Event{UtteranceID: ev.UtteranceID, Type: string(ev.Type), Text: ev.Text, CreatedAt: ev.Time}); err != nil {
			return err
		}
		if err := r.store.EndUtterance(ctx, ev.UtteranceID, ev.Text, ev.Time); err != nil {
			return err
		}
		return r.store.Prune(ctx)
	}
	return nil
}
