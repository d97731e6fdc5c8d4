package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/loqalabs/loqa-dictate/internal/audio"
	"github.com/loqalabs/loqa-dictate/internal/bus"
	"github.com/loqalabs/loqa-dictate/internal/capture"
	"github.com/loqalabs/loqa-dictate/internal/config"
	"github.com/loqalabs/loqa-dictate/internal/dictation"
	"github.com/loqalabs/loqa-dictate/internal/eventstore"
	"github.com/loqalabs/loqa-dictate/internal/natsserver"
	"github.com/loqalabs/loqa-dictate/internal/output"
	"github.com/loqalabs/loqa-dictate/internal/stt"
	"github.com/loqalabs/loqa-dictate/internal/vad"
)

// StartupError marks failures that happen before the dictation loop starts.
type StartupError struct {
	Err error
}

func (e *StartupError) Error() string { return e.Err.Error() }
func (e *StartupError) Unwrap() error { return e.Err }

func startupErr(format string, args ...any) error {
	return &StartupError{Err: fmt.Errorf(format, args...)}
}

// Runtime owns every component of a dictation run and tears them down in
// reverse order.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer

	httpServer *http.Server
	embedded   *natsserver.EmbeddedServer
	busClient  *bus.Client
	store      *eventstore.Store
	recorder   *eventstore.Recorder
	recognizer stt.Recognizer
	detector   *vad.Detector
	source     capture.Source
	queue      *audio.Queue

	closers []func() error
	ready   atomic.Bool
	wg      sync.WaitGroup
}

// New prepares a runtime. Dictated text in screen mode goes to stdout.
func New(cfg config.Config, logger *slog.Logger, stdout io.Writer) *Runtime {
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Runtime{
		cfg:    cfg,
		logger: logger,
		stdout: stdout,
	}
}

// Start builds the pipeline and runs it until ctx is cancelled, the source is
// exhausted, or the loop fails. Errors before the loop starts are
// *StartupError.
func (r *Runtime) Start(ctx context.Context) error {
	defer func() {
		if cerr := r.shutdown(); cerr != nil {
			r.logger.Warn("shutdown incomplete", slog.String("error", cerr.Error()))
		}
	}()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(ctx, r.cfg, r.logger)
	if err != nil {
		return startupErr("failed to setup telemetry: %w", err)
	}
	r.onShutdown(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTelemetry(shutdownCtx)
	})

	if r.cfg.HTTP.Enabled {
		if err := r.startHTTP(metricsHandler); err != nil {
			return startupErr("start http: %w", err)
		}
	}

	var publisher *bus.TranscriptPublisher
	if r.cfg.Bus.Enabled {
		if err := r.startBus(); err != nil {
			return &StartupError{Err: err}
		}
		publisher = bus.NewTranscriptPublisher(r.busClient)
	}

	if err := r.openHistory(ctx); err != nil {
		return &StartupError{Err: err}
	}

	pipeline, err := r.buildPipeline(ctx)
	if err != nil {
		return &StartupError{Err: err}
	}
	if publisher != nil {
		pipeline.OnEvent(publisher.Handle)
	}
	if r.recorder != nil {
		pipeline.OnEvent(r.recorder.Handle)
	}

	r.queue = audio.NewQueue(r.cfg.Audio.QueueCapacity)
	if err := r.registerQueueMetrics(); err != nil {
		r.logger.Warn("queue metrics unavailable", slog.String("error", err.Error()))
	}

	source, err := capture.New(r.cfg.Audio, r.busClient, r.logger)
	if err != nil {
		return &StartupError{Err: err}
	}
	r.source = source
	r.onShutdown(source.Close)

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	normalizer := audio.NewNormalizer(r.cfg.Audio.SampleRate)
	if err := source.Start(loopCtx, capture.Forward(normalizer, r.cfg.Audio.BlockMS, r.queue, r.logger)); err != nil {
		return &StartupError{Err: err}
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		r.stopWhenDrained(loopCtx, cancelLoop)
	}()

	r.ready.Store(true)
	r.logger.Info("listening", slog.String("source", r.cfg.Audio.Source), slog.String("output", r.cfg.Output.Mode))

	runErr := pipeline.Run(loopCtx, r.queue)
	cancelLoop()
	r.ready.Store(false)
	<-drained
	return runErr
}

// stopWhenDrained cancels the loop once a finite source has finished and
// every block it produced has been dequeued.
func (r *Runtime) stopWhenDrained(ctx context.Context, cancel context.CancelFunc) {
	select {
	case <-ctx.Done():
		return
	case <-r.source.Done():
	}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for r.queue.Len() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	// The last block may still be in flight through the pipeline; Run
	// finishes the current tick before it observes cancellation.
	r.logger.Info("audio source finished")
	cancel()
}

func (r *Runtime) startHTTP(metricsHandler http.Handler) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := net.JoinHostPort(r.cfg.HTTP.Bind, strconv.Itoa(r.cfg.HTTP.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	r.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()
	r.onShutdown(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})
	r.logger.Info("http listening", slog.String("addr", ln.Addr().String()))
	return nil
}

func (r *Runtime) startBus() error {
	busCfg := r.cfg.Bus
	embedded, err := natsserver.Start(busCfg, r.logger)
	if err != nil {
		return err
	}
	if embedded != nil {
		r.embedded = embedded
		r.onShutdown(func() error { embedded.Shutdown(); return nil })
		busCfg.Servers = []string{embedded.ClientURL()}
	}

	client, err := bus.Connect(busCfg, r.logger)
	if err != nil {
		return err
	}
	r.busClient = client
	r.onShutdown(func() error { client.Close(); return nil })

	if err := client.EnsureStream(bus.TranscriptStream, bus.TranscriptSubjects, 24*time.Hour); err != nil {
		r.logger.Warn("transcript stream unavailable", slog.String("error", err.Error()))
	}
	return nil
}

func (r *Runtime) openHistory(ctx context.Context) error {
	store, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	r.store = store
	r.onShutdown(store.Close)
	if err := store.Ensure(); err != nil {
		return err
	}
	if r.cfg.EventStore.RetentionMode == "ephemeral" {
		return nil
	}
	r.recorder = eventstore.NewRecorder(store, r.cfg.Audio.Source, r.cfg.STT.Language, r.logger)
	r.onShutdown(func() error { r.recorder.Close(); return nil })
	return nil
}

func (r *Runtime) buildPipeline(ctx context.Context) (*dictation.Pipeline, error) {
	recognizer, err := stt.New(r.cfg.STT)
	if err != nil {
		return nil, fmt.Errorf("create recognizer: %w", err)
	}
	r.recognizer = recognizer
	r.onShutdown(recognizer.Close)

	if r.cfg.STT.Warmup {
		r.logger.Info("warming up recognizer", slog.String("mode", r.cfg.STT.Mode))
		warmCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.STT.TimeoutMS)*time.Millisecond)
		err := stt.Warmup(warmCtx, recognizer, r.cfg.Audio.SampleRate)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	classifier, err := vad.New(r.cfg.VAD)
	if err != nil {
		return nil, fmt.Errorf("create vad: %w", err)
	}
	detector, err := vad.NewDetector(classifier, r.cfg.VAD.Threshold, r.cfg.VAD.WindowSize)
	if err != nil {
		_ = classifier.Close()
		return nil, fmt.Errorf("create speech detector: %w", err)
	}
	r.detector = detector
	r.onShutdown(detector.Close)

	sink, err := output.New(r.cfg.Output, r.stdout, r.logger)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	return dictation.NewPipeline(dictation.OptionsFromConfig(r.cfg), detector, recognizer, sink, r.logger)
}

func (r *Runtime) registerQueueMetrics() error {
	meter := otel.Meter("github.com/loqalabs/loqa-dictate/internal/runtime")
	dropped, err := meter.Int64ObservableCounter("audio.queue.dropped",
		metric.WithDescription("Audio blocks dropped because the queue was full"))
	if err != nil {
		return err
	}
	depth, err := meter.Int64ObservableGauge("audio.queue.depth",
		metric.WithDescription("Audio blocks waiting for the dictation loop"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(dropped, r.queue.Dropped())
		o.ObserveInt64(depth, int64(r.queue.Len()))
		return nil
	}, dropped, depth)
	return err
}

// onShutdown registers a teardown step; steps run in reverse order.
func (r *Runtime) onShutdown(fn func() error) {
	r.closers = append(r.closers, fn)
}

func (r *Runtime) shutdown() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	r.wg.Wait()
	return errors.Join(errs...)
}

// Healthy reports whether the bus, when enabled, is connected.
func (r *Runtime) Healthy() bool {
	return !r.cfg.Bus.Enabled || r.busClient.Healthy()
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !r.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("bus disconnected"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
