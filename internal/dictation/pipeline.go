package dictation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/loqa-dictate/internal/audio"
	"github.com/loqalabs/loqa-dictate/internal/config"
	"github.com/loqalabs/loqa-dictate/internal/stt"
)

const pollTimeout = 100 * time.Millisecond

// SpeechDetector classifies one block as speech or silence.
type SpeechDetector interface {
	HasSpeech(block audio.Block) (bool, error)
	Reset()
}

// Sink renders text. Confirmed text is durable; partial text replaces the
// previous partial.
type Sink interface {
	Confirmed(text string) error
	Partial(text string) error
	CommitLine() error
}

type Options struct {
	SampleRate        int
	BlockMS           int
	MinSilenceMS      int
	ChunkInterval     time.Duration
	MinAudio          time.Duration
	MaxBuffer         time.Duration
	TranscribeTimeout time.Duration
	Language          string
	BeamSize          int
	Separator         string
	Now               func() time.Time
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		SampleRate:        cfg.Audio.SampleRate,
		BlockMS:           cfg.Audio.BlockMS,
		MinSilenceMS:      cfg.VAD.MinSilenceMS,
		ChunkInterval:     time.Duration(cfg.STT.ChunkIntervalMS) * time.Millisecond,
		MinAudio:          time.Duration(cfg.STT.MinAudioMS) * time.Millisecond,
		MaxBuffer:         time.Duration(cfg.STT.MaxBufferMS) * time.Millisecond,
		TranscribeTimeout: time.Duration(cfg.STT.TimeoutMS) * time.Millisecond,
		Language:          cfg.STT.Language,
		BeamSize:          cfg.STT.BeamSize,
		Separator:         cfg.Output.Separator,
	}
}

type session struct {
	id      string
	started time.Time
	text    strings.Builder
}

// Pipeline is the single consumer of normalized audio. All state is touched
// only from the goroutine running Run or Process.
type Pipeline struct {
	opts       Options
	detector   SpeechDetector
	recognizer stt.Recognizer
	sink       Sink
	logger     *slog.Logger
	handlers   []EventHandler

	segmenter  *Segmenter
	scheduler  *Scheduler
	buffer     *UtteranceBuffer
	stabilizer *Stabilizer
	session    *session

	metrics *pipelineMetrics
	tracer  trace.Tracer
}

func NewPipeline(opts Options, detector SpeechDetector, recognizer stt.Recognizer, sink Sink, logger *slog.Logger) (*Pipeline, error) {
	if detector == nil || recognizer == nil || sink == nil {
		return nil, errors.New("dictation: detector, recognizer and sink are required")
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("dictation: invalid sample rate %d", opts.SampleRate)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TranscribeTimeout <= 0 {
		opts.TranscribeTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	metrics, err := newPipelineMetrics()
	if err != nil {
		return nil, fmt.Errorf("dictation: metrics: %w", err)
	}

	return &Pipeline{
		opts:       opts,
		detector:   detector,
		recognizer: recognizer,
		sink:       sink,
		logger:     logger.With(slog.String("component", "dictation")),
		segmenter:  NewSegmenter(SilenceLimit(opts.MinSilenceMS, opts.BlockMS)),
		scheduler:  NewScheduler(opts.ChunkInterval, samplesFor(opts.MinAudio, opts.SampleRate), opts.Now),
		buffer:     NewUtteranceBuffer(samplesFor(opts.MaxBuffer, opts.SampleRate)),
		stabilizer: NewStabilizer(),
		metrics:    metrics,
		tracer:     otel.Tracer(instrumentationName),
	}, nil
}

// OnEvent registers a handler. Call before Run.
func (p *Pipeline) OnEvent(h EventHandler) {
	p.handlers = append(p.handlers, h)
}

// State reports whether an utterance is active.
func (p *Pipeline) State() State {
	return p.segmenter.State()
}

// Run consumes blocks until ctx is cancelled or a block fails to process, then
// flushes any active utterance and commits the output line.
func (p *Pipeline) Run(ctx context.Context, blocks *audio.Queue) error {
	p.logger.Info("dictation loop started",
		slog.Int("silence_limit", p.segmenter.Limit()),
		slog.Duration("chunk_interval", p.opts.ChunkInterval))

	var runErr error
	for ctx.Err() == nil {
		block, ok := blocks.Poll(ctx, pollTimeout)
		if !ok {
			continue
		}
		if err := p.Process(ctx, block); err != nil {
			p.logger.Error("dictation loop failed", slogError(err))
			runErr = err
			break
		}
	}

	if err := p.Flush(context.WithoutCancel(ctx)); err != nil {
		p.logger.Warn("final flush failed", slogError(err))
		runErr = errors.Join(runErr, err)
	}
	p.logger.Info("dictation loop stopped",
		slog.Int64("received_blocks", blocks.Offered()),
		slog.Int64("dropped_blocks", blocks.Dropped()))
	return runErr
}

// Process runs one block through detection, segmentation, scheduling and
// stabilization.
func (p *Pipeline) Process(ctx context.Context, block audio.Block) error {
	hasSpeech, err := p.detector.HasSpeech(block)
	if err != nil {
		return fmt.Errorf("detect speech: %w", err)
	}

	action := p.segmenter.Observe(hasSpeech)
	switch action {
	case ActionDiscard:
		return nil
	case ActionStart:
		p.begin()
	}

	p.buffer.Append(block.Samples)
	if err := p.tick(ctx); err != nil {
		return err
	}
	if action == ActionFinalize {
		return p.finalize(ctx)
	}
	return nil
}

// Flush finalizes the active utterance, if any. The line is committed either
// way.
func (p *Pipeline) Flush(ctx context.Context) error {
	if p.session != nil {
		p.segmenter.Reset()
		return p.finalize(ctx)
	}
	p.commitLine()
	return nil
}

func (p *Pipeline) begin() {
	p.session = &session{id: uuid.NewString(), started: p.opts.Now()}
	p.scheduler.Reset()
	p.buffer.Reset()
	p.stabilizer.Reset()
	p.logger.Debug("listening", slog.String("utterance_id", p.session.id))
	p.emit(EventStarted, "")
}

func (p *Pipeline) tick(ctx context.Context) error {
	if !p.scheduler.Due(p.buffer.Len()) {
		return nil
	}
	hypothesis, err := p.transcribe(ctx, false)
	if err != nil {
		return err
	}
	update := p.stabilizer.Observe(hypothesis)
	if update.Confirmed != "" {
		p.confirm(update.Confirmed)
	}
	if update.Partial != "" {
		if err := p.sink.Partial(update.Partial); err != nil {
			p.logger.Warn("render partial failed", slogError(err))
		}
		p.emit(EventPartial, update.Partial)
	}
	return nil
}

func (p *Pipeline) finalize(ctx context.Context) error {
	var final string
	var err error
	if p.buffer.Len() > 0 {
		final, err = p.transcribe(ctx, true)
	}
	if remaining := p.stabilizer.Flush(final); remaining != "" {
		p.confirm(remaining)
	}
	if p.opts.Separator != "" {
		if serr := p.sink.Confirmed(p.opts.Separator); serr != nil {
			p.logger.Warn("render separator failed", slogError(serr))
		}
	}
	p.commitLine()

	text := ""
	if p.session != nil {
		text = strings.TrimSpace(p.session.text.String())
		p.logger.Debug("end of utterance",
			slog.String("utterance_id", p.session.id),
			slog.Duration("duration", p.opts.Now().Sub(p.session.started)))
	}
	p.emit(EventEnded, text)
	p.metrics.utterances.Add(context.Background(), 1)

	p.session = nil
	p.buffer.Reset()
	p.stabilizer.Reset()
	p.scheduler.Reset()
	p.detector.Reset()
	return err
}

func (p *Pipeline) commitLine() {
	if err := p.sink.CommitLine(); err != nil {
		p.logger.Warn("commit line failed", slogError(err))
	}
}

func (p *Pipeline) confirm(text string) {
	if err := p.sink.Confirmed(text); err != nil {
		p.logger.Warn("render confirmed text failed", slogError(err))
	}
	if p.session != nil {
		p.session.text.WriteString(text)
	}
	p.metrics.confirmedRunes.Add(context.Background(), int64(utf8.RuneCountInString(text)))
	p.logger.Debug("confirmed", slog.String("text", strings.TrimSpace(text)))
	p.emit(EventConfirmed, text)
}

// transcribe runs the recognizer on the whole buffer. The call is detached
// from ctx cancellation so a tick in progress completes during shutdown.
func (p *Pipeline) transcribe(ctx context.Context, final bool) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.TranscribeTimeout)
	defer cancel()

	samples := p.buffer.Snapshot()
	attrs := []attribute.KeyValue{attribute.Bool("final", final)}
	ctx, span := p.tracer.Start(ctx, "dictation.transcribe",
		trace.WithAttributes(append(attrs, attribute.Int("samples", len(samples)))...))
	defer span.End()

	start := time.Now()
	result, err := p.recognizer.Transcribe(ctx, stt.Request{
		Samples:    samples,
		SampleRate: p.opts.SampleRate,
		Language:   p.opts.Language,
		BeamSize:   p.opts.BeamSize,
		Final:      final,
	})
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	p.metrics.transcriptions.Add(ctx, 1, metric.WithAttributes(attrs...))
	p.metrics.latency.Record(ctx, elapsed, metric.WithAttributes(attrs...))
	if err != nil {
		p.metrics.failures.Add(ctx, 1, metric.WithAttributes(attrs...))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

func (p *Pipeline) emit(kind EventType, text string) {
	if len(p.handlers) == 0 {
		return
	}
	var id string
	if p.session != nil {
		id = p.session.id
	}
	ev := Event{Type: kind, UtteranceID: id, Text: text, Time: p.opts.Now().UTC()}
	for _, h := range p.handlers {
		h(ev)
	}
}

func samplesFor(d time.Duration, sampleRate int) int {
	return int(d * time.Duration(sampleRate) / time.Second)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
