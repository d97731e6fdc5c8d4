package bus

import (
	"log/slog"

	"github.com/loqalabs/loqa-dictate/internal/dictation"
	"github.com/loqalabs/loqa-dictate/internal/protocol"
)

// TranscriptStream is the JetStream stream retaining dictation events.
const TranscriptStream = "DICTATION"

// TranscriptSubjects lists every subject the publisher writes to.
var TranscriptSubjects = []string{
	protocol.SubjectUtteranceStarted,
	protocol.SubjectTranscriptPartial,
	protocol.SubjectTranscriptConfirmed,
	protocol.SubjectTranscriptFinal,
}

// TranscriptPublisher forwards pipeline events to the bus.
type TranscriptPublisher struct {
	client *Client
}

func NewTranscriptPublisher(client *Client) *TranscriptPublisher {
	return &TranscriptPublisher{client: client}
}

// Handle is a dictation.EventHandler. Publish failures are logged only.
func (p *TranscriptPublisher) Handle(ev dictation.Event) {
	subject, ok := subjectFor(ev.Type)
	if !ok {
		return
	}
	msg := protocol.Transcript{
		SessionID: ev.UtteranceID,
		Kind:      string(ev.Type),
		Text:      ev.Text,
		Partial:   ev.Type == dictation.EventPartial,
		Timestamp: ev.Time,
	}
	if err := p.client.PublishJSON(subject, msg); err != nil {
		p.client.Logger().Warn("failed to publish transcript", slog.String("error", err.Error()))
	}
}

func subjectFor(t dictation.EventType) (string, bool) {
	switch t {
	case dictation.EventStarted:
		return protocol.SubjectUtteranceStarted, true
	case dictation.EventPartial:
		return protocol.SubjectTranscriptPartial, true
	case dictation.EventConfirmed:
		return protocol.SubjectTranscriptConfirmed, true
	case dictation.EventEnded:
		return protocol.SubjectTranscriptFinal, true
	default:
		return "", false
	}
}
