package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogLevel         string
	LogFormat        string

	CORSOrigins        []string
	AllowAnyOrigin     bool
	RateLimitPerMinute int

	HistoryPairs       int
	DefaultSessionID   string
	MaxMessageChars    int
	SerializeSessions  bool
	PersonaFile        string
	PersonaEmbedEvents bool
	RulesFile          string
	EventsFile         string
	DatabaseURL        string

	CompletionMode        string
	CompletionAPIKey      string
	CompletionBaseURL     string
	CompletionModel       string
	CompletionStreaming   bool
	CompletionTemperature float64
	CompletionTimeout     time.Duration
	CompletionMaxRetries  int

	TracesExporter string
	ServiceName    string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "abha"),
		LogLevel:         envOrDefault("APP_LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("APP_LOG_FORMAT", "text"),
		CORSOrigins: splitList(envOrDefault("APP_CORS_ORIGINS",
			"http://localhost:5173,http://127.0.0.1:8000,https://abha-web.vercel.app")),
		RateLimitPerMinute: 10,
		HistoryPairs:       10,
		DefaultSessionID:   envOrDefault("CHAT_DEFAULT_SESSION_ID", "default"),
		MaxMessageChars:    1000,
		SerializeSessions:  true,
		PersonaFile:        trimmedEnv("PERSONA_FILE"),
		RulesFile:          trimmedEnv("RULES_FILE"),
		EventsFile:         trimmedEnv("EVENTS_FILE"),
		DatabaseURL:        trimmedEnv("DATABASE_URL"),
		CompletionMode:     strings.ToLower(envOrDefault("COMPLETION_MODE", "auto")),
		CompletionAPIKey:   trimmedEnv("OPENROUTER_API_KEY"),
		CompletionBaseURL:  envOrDefault("OPENROUTER_API_BASE", "https://openrouter.ai/api/v1"),
		CompletionModel:    envOrDefault("MODEL_NAME", "meta-llama/llama-3.3-8b-instruct:free"),
		CompletionStreaming: true,
		CompletionTimeout:   60 * time.Second,
		TracesExporter:      envOrDefault("OTEL_TRACES_EXPORTER", "none"),
		ServiceName:         envOrDefault("OTEL_SERVICE_NAME", "abha-chat"),
		ShutdownTimeout:     15 * time.Second,
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = intFromEnv("APP_RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute); err != nil {
		return Config{}, err
	}
	if cfg.HistoryPairs, err = intFromEnv("CHAT_HISTORY_PAIRS", cfg.HistoryPairs); err != nil {
		return Config{}, err
	}
	if cfg.MaxMessageChars, err = intFromEnv("CHAT_MAX_MESSAGE_CHARS", cfg.MaxMessageChars); err != nil {
		return Config{}, err
	}
	if cfg.SerializeSessions, err = boolFromEnv("CHAT_SERIALIZE_SESSIONS", cfg.SerializeSessions); err != nil {
		return Config{}, err
	}
	if cfg.PersonaEmbedEvents, err = boolFromEnv("PERSONA_EMBED_EVENTS", cfg.PersonaEmbedEvents); err != nil {
		return Config{}, err
	}
	if cfg.CompletionStreaming, err = boolFromEnv("COMPLETION_STREAMING", cfg.CompletionStreaming); err != nil {
		return Config{}, err
	}
	if cfg.CompletionTemperature, err = floatFromEnv("COMPLETION_TEMPERATURE", cfg.CompletionTemperature); err != nil {
		return Config{}, err
	}
	if cfg.CompletionTimeout, err = durationFromEnv("COMPLETION_TIMEOUT", cfg.CompletionTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CompletionMaxRetries, err = intFromEnv("COMPLETION_MAX_RETRIES", cfg.CompletionMaxRetries); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.HistoryPairs <= 0:
		return fmt.Errorf("CHAT_HISTORY_PAIRS must be positive")
	case c.MaxMessageChars <= 0:
		return fmt.Errorf("CHAT_MAX_MESSAGE_CHARS must be positive")
	case c.RateLimitPerMinute < 0:
		return fmt.Errorf("APP_RATE_LIMIT_PER_MINUTE must be >= 0")
	case c.CompletionMaxRetries < 0:
		return fmt.Errorf("COMPLETION_MAX_RETRIES must be >= 0")
	case c.CompletionTemperature < 0 || c.CompletionTemperature > 2:
		return fmt.Errorf("COMPLETION_TEMPERATURE must be within [0, 2]")
	case c.CompletionTimeout <= 0:
		return fmt.Errorf("COMPLETION_TIMEOUT must be positive")
	}
	switch c.CompletionMode {
	case "auto", "openai", "mock":
	default:
		return fmt.Errorf("COMPLETION_MODE must be one of auto, openai, mock")
	}
	if c.CompletionMode == "openai" && c.CompletionAPIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required when COMPLETION_MODE=openai")
	}
	return nil
}

// UseMockCompleter reports whether replies come from the local mock.
func (c Config) UseMockCompleter() bool {
	return c.CompletionMode == "mock" || (c.CompletionMode == "auto" && c.CompletionAPIKey == "")
}

func envOrDefault(key, fallback string) string {
	v := trimmedEnv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
