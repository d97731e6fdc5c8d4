package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-dictate/internal/config"
	"github.com/loqalabs/loqa-dictate/internal/runtime"
)

var version = "0.1.0-dev"

type rootOptions struct {
	configPath    string
	model         string
	language      string
	device        int
	chunkSize     float64
	beamSize      int
	vadThreshold  float64
	minSilenceMS  int
	keyboard      bool
	keyboardDelay float64
	listDevices   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "loqa-dictate",
		Short:         "Real-time voice dictation",
		Long:          `loqa-dictate turns microphone audio into stabilized text, shown on screen or typed into the focused window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDictation(cmd, opts)
		},
	}

	flags := cmd.Flags()
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flags.StringVar(&opts.model, "model", "large-v3-turbo", "Speech recognition model")
	flags.StringVar(&opts.language, "language", "", "Language code, e.g. en, es, de (default: auto-detect)")
	flags.IntVar(&opts.device, "device", -1, "Audio input device index (see --list-devices)")
	flags.Float64Var(&opts.chunkSize, "chunk-size", 1.0, "Seconds between transcription passes")
	flags.IntVar(&opts.beamSize, "beam-size", 1, "Beam size for decoding")
	flags.Float64Var(&opts.vadThreshold, "vad-threshold", 0.5, "Speech probability threshold")
	flags.IntVar(&opts.minSilenceMS, "min-silence-ms", 600, "Silence in ms that ends an utterance")
	flags.BoolVar(&opts.keyboard, "keyboard", false, "Type transcription as keystrokes into the focused window")
	flags.Float64Var(&opts.keyboardDelay, "keyboard-delay", 0, "Delay between keystrokes in seconds")
	flags.BoolVar(&opts.listDevices, "list-devices", false, "List audio input devices and exit")

	cmd.AddCommand(newDevicesCmd())
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return cmd
}

func runDictation(cmd *cobra.Command, opts *rootOptions) error {
	if opts.listDevices {
		return printDevices(cmd.OutOrStdout())
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return err
	}
	applyFlags(cmd, opts, &cfg)
	logger := newLogger(cfg.Telemetry, os.Stderr)
	if err := config.Validate(cfg); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return err
	}

	printBanner(os.Stderr, cfg)

	rt := runtime.New(cfg, logger, cmd.OutOrStdout())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Start(ctx); err != nil {
		var startup *runtime.StartupError
		if errors.As(err, &startup) {
			logger.Error("failed to start", slog.String("error", err.Error()))
		} else {
			logger.Error("runtime exited with error", slog.String("error", err.Error()))
		}
		time.Sleep(500 * time.Millisecond)
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

// loadConfig reads .env files into the environment, then the YAML config
// with LOQA_* overrides.
func loadConfig(path string) (config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config.Config{}, fmt.Errorf("load .env: %w", err)
	}
	return config.Load(path)
}

// applyFlags overrides configuration with the flags the user set explicitly.
func applyFlags(cmd *cobra.Command, opts *rootOptions, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("model") {
		cfg.STT.Model = opts.model
	}
	if changed("language") {
		cfg.STT.Language = opts.language
	}
	if changed("device") {
		cfg.Audio.Device = opts.device
	}
	if changed("chunk-size") {
		cfg.STT.ChunkIntervalMS = int(opts.chunkSize * 1000)
	}
	if changed("beam-size") {
		cfg.STT.BeamSize = opts.beamSize
	}
	if changed("vad-threshold") {
		cfg.VAD.Threshold = opts.vadThreshold
	}
	if changed("min-silence-ms") {
		cfg.VAD.MinSilenceMS = opts.minSilenceMS
	}
	if changed("keyboard") && opts.keyboard {
		cfg.Output.Mode = "keyboard"
	}
	if changed("keyboard-delay") {
		cfg.Output.KeystrokeDelayMS = int(opts.keyboardDelay * 1000)
	}
}

// newLogger writes to stderr; stdout carries dictated text in screen mode.
func newLogger(cfg config.TelemetryConfig, w io.Writer) *slog.Logger {
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)}))
	}
	level, err := charmlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = charmlog.InfoLevel
	}
	return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	}))
}

func slogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func printBanner(w io.Writer, cfg config.Config) {
	language := cfg.STT.Language
	if language == "" {
		language = "auto-detect"
	}
	device := "default"
	if cfg.Audio.Device >= 0 {
		device = fmt.Sprintf("#%d", cfg.Audio.Device)
	}
	switch cfg.Audio.Source {
	case "wav":
		device = cfg.Audio.WAVPath
	case "nats":
		device = "bus subject " + cfg.Audio.Subject
	}
	output := strings.ToUpper(cfg.Output.Mode)
	if cfg.Output.Mode == "keyboard" {
		output += " (switch to the target window)"
	}

	rule := strings.Repeat("=", 52)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  loqa-dictate %s\n", version)
	fmt.Fprintf(w, "  Model:    %s (%s)\n", cfg.STT.Model, cfg.STT.Mode)
	fmt.Fprintf(w, "  Language: %s\n", language)
	fmt.Fprintf(w, "  Device:   %s\n", device)
	fmt.Fprintf(w, "  Output:   %s\n", output)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}
