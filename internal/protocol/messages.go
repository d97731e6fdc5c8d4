package protocol

import "time"

// AudioFrame carries little-endian PCM16 audio from a remote capture client.
type AudioFrame struct {
	SessionID  string `json:"session_id"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        []byte `json:"pcm"`
	Final      bool   `json:"final"`
}

// Transcript is a dictation event broadcast on the bus. SessionID identifies
// the utterance.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Partial   bool      `json:"partial"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectAudioFramePrefix    = "audio.frame"
	SubjectUtteranceStarted    = "stt.utterance.started"
	SubjectTranscriptPartial   = "stt.text.partial"
	SubjectTranscriptConfirmed = "stt.text.confirmed"
	SubjectTranscriptFinal     = "stt.text.final"
)

// AudioFrameSubject returns the subject remote clients publish frames on.
func AudioFrameSubject(stream string) string {
	return SubjectAudioFramePrefix + "." + stream
}
