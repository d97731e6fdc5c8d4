package dictation

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/loqalabs/loqa-dictate/internal/dictation"

type pipelineMetrics struct {
	utterances     metric.Int64Counter
	transcriptions metric.Int64Counter
	failures       metric.Int64Counter
	latency        metric.Float64Histogram
	confirmedRunes metric.Int64Counter
}

func newPipelineMetrics() (*pipelineMetrics, error) {
	meter := otel.Meter(instrumentationName)

	utterances, err := meter.Int64Counter("dictation.utterances",
		metric.WithDescription("Utterances finalized"))
	if err != nil {
		return nil, err
	}
	transcriptions, err := meter.Int64Counter("dictation.transcriptions",
		metric.WithDescription("Recognizer invocations"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("dictation.transcription.failures",
		metric.WithDescription("Recognizer invocations that returned an error"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("dictation.transcription.duration",
		metric.WithDescription("Recognizer latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	confirmed, err := meter.Int64Counter("dictation.confirmed.characters",
		metric.WithDescription("Characters of confirmed text emitted"))
	if err != nil {
		return nil, err
	}

	return &pipelineMetrics{
		utterances:     utterances,
		transcriptions: transcriptions,
		failures:       failures,
		latency:        latency,
		confirmedRunes: confirmed,
	}, nil
}
