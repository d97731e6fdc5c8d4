package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"` // text, json
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	TraceStdout  bool   `yaml:"trace_stdout"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
	Port    int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Audio       AudioConfig      `yaml:"audio"`
	VAD         VADConfig        `yaml:"vad"`
	STT         STTConfig        `yaml:"stt"`
	Output      OutputConfig     `yaml:"output"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type AudioConfig struct {
	Source        string  `yaml:"source"` // portaudio, wav, nats
	Device        int     `yaml:"device"` // -1 selects the default input device
	SampleRate    int     `yaml:"sample_rate"`
	BlockMS       int     `yaml:"block_ms"`
	QueueCapacity int     `yaml:"queue_capacity"`
	WAVPath       string  `yaml:"wav_path"`
	WAVSpeed      float64 `yaml:"wav_speed"`
	Subject       string  `yaml:"subject"`
}

type VADConfig struct {
	Mode            string  `yaml:"mode"` // energy, silero
	Threshold       float64 `yaml:"threshold"`
	WindowSize      int     `yaml:"window_size"`
	MinSilenceMS    int     `yaml:"min_silence_ms"`
	EnergyReference float64 `yaml:"energy_reference"`
	ModelPath       string  `yaml:"model_path"`
	RuntimeLibrary  string  `yaml:"runtime_library"`
}

type STTConfig struct {
	Mode            string `yaml:"mode"` // mock, exec, openai, whisper
	Command         string `yaml:"command"`
	Model           string `yaml:"model"`
	ModelPath       string `yaml:"model_path"`
	Endpoint        string `yaml:"endpoint"`
	APIKey          string `yaml:"api_key"`
	Language        string `yaml:"language"`
	BeamSize        int    `yaml:"beam_size"`
	ChunkIntervalMS int    `yaml:"chunk_interval_ms"`
	MinAudioMS      int    `yaml:"min_audio_ms"`
	MaxBufferMS     int    `yaml:"max_buffer_ms"`
	TimeoutMS       int    `yaml:"timeout_ms"`
	Warmup          bool   `yaml:"warmup"`
}

type OutputConfig struct {
	Mode             string `yaml:"mode"`     // screen, keyboard
	Injector         string `yaml:"injector"` // exec, keybd
	TypeCommand      string `yaml:"type_command"`
	BackspaceCommand string `yaml:"backspace_command"`
	KeystrokeDelayMS int    `yaml:"keystroke_delay_ms"`
	KeyboardPartials bool   `yaml:"keyboard_partials"`
	Separator        string `yaml:"separator"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-dictate",
		Environment: "development",
		HTTP: HTTPConfig{
			Enabled: false,
			Bind:    "127.0.0.1",
			Port:    9464,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			LogFormat:    "text",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/loqa-dictate.db",
			RetentionMode: "ephemeral",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Audio: AudioConfig{
			Source:        "portaudio",
			Device:        -1,
			SampleRate:    16000,
			BlockMS:       100,
			QueueCapacity: 300,
			WAVSpeed:      1.0,
			Subject:       "default",
		},
		VAD: VADConfig{
			Mode:            "energy",
			Threshold:       0.5,
			WindowSize:      512,
			MinSilenceMS:    600,
			EnergyReference: 0.02,
		},
		STT: STTConfig{
			Mode:            "mock",
			Model:           "large-v3-turbo",
			BeamSize:        1,
			ChunkIntervalMS: 1000,
			MinAudioMS:      300,
			MaxBufferMS:     30000,
			TimeoutMS:       45000,
			Warmup:          true,
		},
		Output: OutputConfig{
			Mode:             "screen",
			Injector:         "exec",
			TypeCommand:      "xdotool type --clearmodifiers --",
			BackspaceCommand: "xdotool key --clearmodifiers BackSpace",
			Separator:        " ",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LOQA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LOQA_RUNTIME_ENVIRONMENT")
	overrideBool(&cfg.HTTP.Enabled, "LOQA_HTTP_ENABLED")
	overrideString(&cfg.HTTP.Bind, "LOQA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFormat, "LOQA_TELEMETRY_LOG_FORMAT")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.TraceStdout, "LOQA_TELEMETRY_TRACE_STDOUT")
	overrideBool(&cfg.Bus.Enabled, "LOQA_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "LOQA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LOQA_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "LOQA_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "LOQA_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "LOQA_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "LOQA_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "LOQA_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "LOQA_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Audio.Source, "LOQA_AUDIO_SOURCE")
	overrideInt(&cfg.Audio.Device, "LOQA_AUDIO_DEVICE")
	overrideInt(&cfg.Audio.SampleRate, "LOQA_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.BlockMS, "LOQA_AUDIO_BLOCK_MS")
	overrideInt(&cfg.Audio.QueueCapacity, "LOQA_AUDIO_QUEUE_CAPACITY")
	overrideString(&cfg.Audio.WAVPath, "LOQA_AUDIO_WAV_PATH")
	overrideFloat(&cfg.Audio.WAVSpeed, "LOQA_AUDIO_WAV_SPEED")
	overrideString(&cfg.Audio.Subject, "LOQA_AUDIO_SUBJECT")
	overrideString(&cfg.VAD.Mode, "LOQA_VAD_MODE")
	overrideFloat(&cfg.VAD.Threshold, "LOQA_VAD_THRESHOLD")
	overrideInt(&cfg.VAD.WindowSize, "LOQA_VAD_WINDOW_SIZE")
	overrideInt(&cfg.VAD.MinSilenceMS, "LOQA_VAD_MIN_SILENCE_MS")
	overrideFloat(&cfg.VAD.EnergyReference, "LOQA_VAD_ENERGY_REFERENCE")
	overrideString(&cfg.VAD.ModelPath, "LOQA_VAD_MODEL_PATH")
	overrideString(&cfg.VAD.RuntimeLibrary, "LOQA_VAD_RUNTIME_LIBRARY")
	overrideString(&cfg.STT.Mode, "LOQA_STT_MODE")
	overrideString(&cfg.STT.Command, "LOQA_STT_COMMAND")
	overrideString(&cfg.STT.Model, "LOQA_STT_MODEL")
	overrideString(&cfg.STT.ModelPath, "LOQA_STT_MODEL_PATH")
	overrideString(&cfg.STT.Endpoint, "LOQA_STT_ENDPOINT")
	overrideString(&cfg.STT.APIKey, "LOQA_STT_API_KEY")
	overrideString(&cfg.STT.Language, "LOQA_STT_LANGUAGE")
	overrideInt(&cfg.STT.BeamSize, "LOQA_STT_BEAM_SIZE")
	overrideInt(&cfg.STT.ChunkIntervalMS, "LOQA_STT_CHUNK_INTERVAL_MS")
	overrideInt(&cfg.STT.MinAudioMS, "LOQA_STT_MIN_AUDIO_MS")
	overrideInt(&cfg.STT.MaxBufferMS, "LOQA_STT_MAX_BUFFER_MS")
	overrideInt(&cfg.STT.TimeoutMS, "LOQA_STT_TIMEOUT_MS")
	overrideBool(&cfg.STT.Warmup, "LOQA_STT_WARMUP")
	overrideString(&cfg.Output.Mode, "LOQA_OUTPUT_MODE")
	overrideString(&cfg.Output.Injector, "LOQA_OUTPUT_INJECTOR")
	overrideString(&cfg.Output.TypeCommand, "LOQA_OUTPUT_TYPE_COMMAND")
	overrideString(&cfg.Output.BackspaceCommand, "LOQA_OUTPUT_BACKSPACE_COMMAND")
	overrideInt(&cfg.Output.KeystrokeDelayMS, "LOQA_OUTPUT_KEYSTROKE_DELAY_MS")
	overrideBool(&cfg.Output.KeyboardPartials, "LOQA_OUTPUT_KEYBOARD_PARTIALS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

// Validate checks a fully merged configuration. The CLI calls it again after
// applying flag overrides.
func Validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Enabled && (cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535) {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.Telemetry.LogFormat {
	case "text", "json":
	default:
		return errors.New("telemetry.log_format must be one of text|json")
	}
	if cfg.Bus.Enabled || cfg.Audio.Source == "nats" {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	switch cfg.Audio.Source {
	case "portaudio", "nats":
	case "wav":
		if cfg.Audio.WAVPath == "" {
			return errors.New("audio.wav_path must be set when source=wav")
		}
		if cfg.Audio.WAVSpeed < 0 {
			return errors.New("audio.wav_speed must be >= 0")
		}
	default:
		return errors.New("audio.source must be one of portaudio|wav|nats")
	}
	if cfg.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if cfg.Audio.BlockMS <= 0 {
		return errors.New("audio.block_ms must be positive")
	}
	if cfg.Audio.QueueCapacity <= 0 {
		return errors.New("audio.queue_capacity must be positive")
	}
	switch cfg.VAD.Mode {
	case "energy":
		if cfg.VAD.EnergyReference <= 0 {
			return errors.New("vad.energy_reference must be positive")
		}
	case "silero":
		if cfg.VAD.ModelPath == "" {
			return errors.New("vad.model_path must be set when mode=silero")
		}
	default:
		return errors.New("vad.mode must be one of energy|silero")
	}
	if cfg.VAD.Threshold < 0 || cfg.VAD.Threshold > 1 {
		return errors.New("vad.threshold must be between 0 and 1")
	}
	if cfg.VAD.WindowSize <= 0 {
		return errors.New("vad.window_size must be positive")
	}
	if cfg.VAD.MinSilenceMS < 0 {
		return errors.New("vad.min_silence_ms must be >= 0")
	}
	switch cfg.STT.Mode {
	case "mock":
	case "exec":
		if cfg.STT.Command == "" {
			return errors.New("stt.command must be set when mode=exec")
		}
	case "openai":
		if cfg.STT.Endpoint == "" && cfg.STT.APIKey == "" {
			return errors.New("stt.endpoint or stt.api_key must be set when mode=openai")
		}
	case "whisper":
		if cfg.STT.ModelPath == "" {
			return errors.New("stt.model_path must be set when mode=whisper")
		}
	default:
		return errors.New("stt.mode must be one of mock|exec|openai|whisper")
	}
	if cfg.STT.BeamSize <= 0 {
		return errors.New("stt.beam_size must be >= 1")
	}
	if cfg.STT.ChunkIntervalMS < 0 {
		return errors.New("stt.chunk_interval_ms must be >= 0")
	}
	if cfg.STT.MinAudioMS < 0 {
		return errors.New("stt.min_audio_ms must be >= 0")
	}
	if cfg.STT.MaxBufferMS < cfg.Audio.BlockMS {
		return errors.New("stt.max_buffer_ms must hold at least one audio block")
	}
	switch cfg.Output.Mode {
	case "screen":
	case "keyboard":
		switch cfg.Output.Injector {
		case "keybd":
		case "exec":
			if cfg.Output.TypeCommand == "" || cfg.Output.BackspaceCommand == "" {
				return errors.New("output.type_command and output.backspace_command must be set when injector=exec")
			}
		default:
			return errors.New("output.injector must be one of exec|keybd")
		}
	default:
		return errors.New("output.mode must be one of screen|keyboard")
	}
	if cfg.Output.KeystrokeDelayMS < 0 {
		return errors.New("output.keystroke_delay_ms must be >= 0")
	}
	return nil
}
