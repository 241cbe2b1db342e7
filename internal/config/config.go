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
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Client      ClientConfig      `yaml:"client"`
	Audio       AudioConfig       `yaml:"audio"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Volume      VolumeConfig      `yaml:"volume"`
	Display     DisplayConfig     `yaml:"display"`
	Translation TranslationConfig `yaml:"translation"`
	Assistant   AssistantConfig   `yaml:"assistant"`
	Store       StoreConfig       `yaml:"store"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// ClientConfig identifies this process on the presence channel.
type ClientConfig struct {
	ID                string `yaml:"id"`
	Role              string `yaml:"role"`
	HeartbeatInterval int    `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeout  int    `yaml:"heartbeat_timeout_ms"`
}

type AudioConfig struct {
	Enabled           bool `yaml:"enabled"`
	SampleRate        int  `yaml:"sample_rate"`
	Channels          int  `yaml:"channels"`
	FrameDurationMS   int  `yaml:"frame_duration_ms"`
	SilenceEndpointMS int  `yaml:"silence_endpoint_ms"`
}

type RecognitionConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Mode           string `yaml:"mode"` // mock, exec
	Command        string `yaml:"command"`
	ModelPath      string `yaml:"model_path"`
	Language       string `yaml:"language"`
	Continuous     bool   `yaml:"continuous"`
	InterimResults bool   `yaml:"interim_results"`
	PartialEveryMS int    `yaml:"partial_every_ms"`
	SampleRate     int    `yaml:"sample_rate"`
	Channels       int    `yaml:"channels"`
}

type VolumeConfig struct {
	Enabled bool `yaml:"enabled"`
}

type DisplayConfig struct {
	Style    string `yaml:"style"` // karaoke, notes
	MaxAgeMS int    `yaml:"max_age_ms"`
	MaxLines int    `yaml:"max_lines"`
}

type TranslationConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Mode           string `yaml:"mode"` // mock, google
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	SourceLanguage string `yaml:"source_language"`
	TargetLanguage string `yaml:"target_language"`
	TimeoutMS      int    `yaml:"timeout_ms"`
}

type AssistantConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Mode        string  `yaml:"mode"` // mock, ollama, exec
	Endpoint    string  `yaml:"endpoint"`
	Command     string  `yaml:"command"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Summarize   bool    `yaml:"summarize_sessions"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"` // ephemeral, session, persistent
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	DemoSeed      bool   `yaml:"demo_seed"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		RuntimeName: "livecap-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Client: ClientConfig{
			ID:                "livecap-node-1",
			Role:              "runtime",
			HeartbeatInterval: 2000,
			HeartbeatTimeout:  6000,
		},
		Audio: AudioConfig{
			Enabled:           false,
			SampleRate:        16000,
			Channels:          1,
			FrameDurationMS:   20,
			SilenceEndpointMS: 800,
		},
		Recognition: RecognitionConfig{
			Enabled:        true,
			Mode:           "mock",
			Language:       "en-US",
			Continuous:     true,
			InterimResults: true,
			PartialEveryMS: 800,
			SampleRate:     16000,
			Channels:       1,
		},
		Volume: VolumeConfig{
			Enabled: true,
		},
		Display: DisplayConfig{
			Style:    "karaoke",
			MaxAgeMS: 15000,
			MaxLines: 8,
		},
		Translation: TranslationConfig{
			Enabled:        false,
			Mode:           "google",
			Endpoint:       "https://translation.googleapis.com/language/translate/v2",
			SourceLanguage: "en",
			TargetLanguage: "en",
			TimeoutMS:      5000,
		},
		Assistant: AssistantConfig{
			Enabled:     false,
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2:latest",
			MaxTokens:   1024,
			Temperature: 0.8,
			Summarize:   true,
		},
		Store: StoreConfig{
			Path:          "./data/livecap-sessions.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
			DemoSeed:      false,
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
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LIVECAP_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LIVECAP_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LIVECAP_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LIVECAP_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LIVECAP_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LIVECAP_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LIVECAP_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "LIVECAP_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "LIVECAP_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LIVECAP_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "LIVECAP_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LIVECAP_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LIVECAP_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LIVECAP_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LIVECAP_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LIVECAP_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Client.ID, "LIVECAP_CLIENT_ID")
	overrideString(&cfg.Client.Role, "LIVECAP_CLIENT_ROLE")
	overrideInt(&cfg.Client.HeartbeatInterval, "LIVECAP_CLIENT_HEARTBEAT_INTERVAL_MS")
	overrideInt(&cfg.Client.HeartbeatTimeout, "LIVECAP_CLIENT_HEARTBEAT_TIMEOUT_MS")
	overrideBool(&cfg.Audio.Enabled, "LIVECAP_AUDIO_ENABLED")
	overrideInt(&cfg.Audio.SampleRate, "LIVECAP_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "LIVECAP_AUDIO_CHANNELS")
	overrideInt(&cfg.Audio.FrameDurationMS, "LIVECAP_AUDIO_FRAME_DURATION_MS")
	overrideBool(&cfg.Recognition.Enabled, "LIVECAP_RECOGNITION_ENABLED")
	overrideString(&cfg.Recognition.Mode, "LIVECAP_RECOGNITION_MODE")
	overrideString(&cfg.Recognition.Command, "LIVECAP_RECOGNITION_COMMAND")
	overrideString(&cfg.Recognition.ModelPath, "LIVECAP_RECOGNITION_MODEL_PATH")
	overrideString(&cfg.Recognition.Language, "LIVECAP_RECOGNITION_LANGUAGE")
	overrideBool(&cfg.Recognition.Continuous, "LIVECAP_RECOGNITION_CONTINUOUS")
	overrideBool(&cfg.Recognition.InterimResults, "LIVECAP_RECOGNITION_INTERIM_RESULTS")
	overrideInt(&cfg.Recognition.PartialEveryMS, "LIVECAP_RECOGNITION_PARTIAL_EVERY_MS")
	overrideBool(&cfg.Volume.Enabled, "LIVECAP_VOLUME_ENABLED")
	overrideString(&cfg.Display.Style, "LIVECAP_DISPLAY_STYLE")
	overrideInt(&cfg.Display.MaxAgeMS, "LIVECAP_DISPLAY_MAX_AGE_MS")
	overrideInt(&cfg.Display.MaxLines, "LIVECAP_DISPLAY_MAX_LINES")
	overrideBool(&cfg.Translation.Enabled, "LIVECAP_TRANSLATION_ENABLED")
	overrideString(&cfg.Translation.Mode, "LIVECAP_TRANSLATION_MODE")
	overrideString(&cfg.Translation.Endpoint, "LIVECAP_TRANSLATION_ENDPOINT")
	overrideString(&cfg.Translation.APIKey, "LIVECAP_TRANSLATION_API_KEY")
	overrideString(&cfg.Translation.SourceLanguage, "LIVECAP_TRANSLATION_SOURCE_LANGUAGE")
	overrideString(&cfg.Translation.TargetLanguage, "LIVECAP_TRANSLATION_TARGET_LANGUAGE")
	overrideInt(&cfg.Translation.TimeoutMS, "LIVECAP_TRANSLATION_TIMEOUT_MS")
	overrideBool(&cfg.Assistant.Enabled, "LIVECAP_ASSISTANT_ENABLED")
	overrideString(&cfg.Assistant.Mode, "LIVECAP_ASSISTANT_MODE")
	overrideString(&cfg.Assistant.Endpoint, "LIVECAP_ASSISTANT_ENDPOINT")
	overrideString(&cfg.Assistant.Command, "LIVECAP_ASSISTANT_COMMAND")
	overrideString(&cfg.Assistant.Model, "LIVECAP_ASSISTANT_MODEL")
	overrideInt(&cfg.Assistant.MaxTokens, "LIVECAP_ASSISTANT_MAX_TOKENS")
	overrideFloat(&cfg.Assistant.Temperature, "LIVECAP_ASSISTANT_TEMPERATURE")
	overrideBool(&cfg.Assistant.Summarize, "LIVECAP_ASSISTANT_SUMMARIZE_SESSIONS")
	overrideString(&cfg.Store.Path, "LIVECAP_STORE_PATH")
	overrideString(&cfg.Store.RetentionMode, "LIVECAP_STORE_RETENTION_MODE")
	overrideInt(&cfg.Store.RetentionDays, "LIVECAP_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxSessions, "LIVECAP_STORE_MAX_SESSIONS")
	overrideBool(&cfg.Store.DemoSeed, "LIVECAP_STORE_DEMO_SEED")
	overrideBool(&cfg.Store.VacuumOnStart, "LIVECAP_STORE_VACUUM_ON_START")
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

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Client.ID == "" {
		return errors.New("client.id must not be empty")
	}
	if cfg.Client.HeartbeatInterval <= 0 {
		return errors.New("client.heartbeat_interval_ms must be positive")
	}
	if cfg.Client.HeartbeatTimeout <= cfg.Client.HeartbeatInterval {
		return errors.New("client.heartbeat_timeout_ms must be greater than heartbeat interval")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Audio.Enabled {
		if cfg.Audio.SampleRate <= 0 {
			return errors.New("audio.sample_rate must be positive")
		}
		if cfg.Audio.Channels <= 0 {
			return errors.New("audio.channels must be positive")
		}
		if cfg.Audio.FrameDurationMS <= 0 {
			return errors.New("audio.frame_duration_ms must be positive")
		}
	}
	if cfg.Recognition.Enabled {
		switch cfg.Recognition.Mode {
		case "mock", "exec":
		default:
			return errors.New("recognition.mode must be one of mock|exec")
		}
		if cfg.Recognition.Mode == "exec" && cfg.Recognition.Command == "" {
			return errors.New("recognition.command must be set when mode=exec")
		}
		if cfg.Recognition.SampleRate <= 0 {
			return errors.New("recognition.sample_rate must be positive")
		}
		if cfg.Recognition.Channels <= 0 {
			return errors.New("recognition.channels must be positive")
		}
	}
	switch cfg.Display.Style {
	case "karaoke", "notes":
	default:
		return errors.New("display.style must be one of karaoke|notes")
	}
	if cfg.Display.MaxLines <= 0 {
		return errors.New("display.max_lines must be positive")
	}
	if cfg.Display.Style == "karaoke" && cfg.Display.MaxAgeMS <= 0 {
		return errors.New("display.max_age_ms must be positive when style=karaoke")
	}
	if cfg.Translation.Enabled {
		switch cfg.Translation.Mode {
		case "mock", "google":
		default:
			return errors.New("translation.mode must be one of mock|google")
		}
		if cfg.Translation.Mode == "google" && cfg.Translation.Endpoint == "" {
			return errors.New("translation.endpoint must be set when mode=google")
		}
		if cfg.Translation.TargetLanguage == "" {
			return errors.New("translation.target_language must not be empty")
		}
	}
	if cfg.Assistant.Enabled {
		switch cfg.Assistant.Mode {
		case "mock", "ollama", "exec":
		default:
			return errors.New("assistant.mode must be one of mock|ollama|exec")
		}
		if cfg.Assistant.Mode == "ollama" && cfg.Assistant.Endpoint == "" {
			return errors.New("assistant.endpoint must be set when mode=ollama")
		}
		if cfg.Assistant.Mode == "exec" && cfg.Assistant.Command == "" {
			return errors.New("assistant.command must be set when mode=exec")
		}
		if cfg.Assistant.MaxTokens < 0 {
			return errors.New("assistant.max_tokens must be >= 0")
		}
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	switch cfg.Store.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	return nil
}
