package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sahaleey/abhachat/internal/canned"
	"github.com/sahaleey/abhachat/internal/chat"
	"github.com/sahaleey/abhachat/internal/config"
	"github.com/sahaleey/abhachat/internal/events"
	"github.com/sahaleey/abhachat/internal/httpapi"
	"github.com/sahaleey/abhachat/internal/llm"
	"github.com/sahaleey/abhachat/internal/memory"
	"github.com/sahaleey/abhachat/internal/observability"
	"github.com/sahaleey/abhachat/internal/persona"
	"github.com/sahaleey/abhachat/internal/session"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Chat     *chat.Service
	Sessions *session.Manager
	Metrics  *observability.Metrics
	// Completion names the active completion backend ("openai" or "mock").
	Completion string

	// Cleanup should be called on shutdown to release external resources (DB pool).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	registry, err := events.NewRegistry(ctx, cfg.DatabaseURL, cfg.EventsFile)
	if err != nil {
		return nil, fmt.Errorf("event registry init failed: %w", err)
	}

	res, err := build(ctx, cfg, logger, metrics, registry)
	if err != nil {
		_ = registry.Close()
		return nil, err
	}
	return res, nil
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *observability.Metrics, registry events.Registry) (*BuildResult, error) {
	rules := canned.DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := canned.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("canned rules: %w", err)
		}
		rules = loaded
	}
	matcher, err := canned.NewMatcher(rules, registry, logger)
	if err != nil {
		return nil, fmt.Errorf("canned matcher: %w", err)
	}

	prompt, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		return nil, err
	}
	if cfg.PersonaEmbedEvents {
		list, err := registry.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("event snapshot for persona: %w", err)
		}
		prompt = persona.WithEvents(prompt, list)
	}

	completer, backend, err := newCompleter(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := memory.NewInMemoryStore(cfg.HistoryPairs)
	sessions := session.NewManager(cfg.SerializeSessions)
	sessions.SetCreateHook(func(info session.Info) {
		metrics.KnownSessions.Inc()
		logger.Debug("session created", "session_id", info.ID)
	})

	svc, err := chat.NewService(chat.Config{
		Persona:          prompt,
		DefaultSessionID: cfg.DefaultSessionID,
		MaxMessageChars:  cfg.MaxMessageChars,
	}, matcher, store, sessions, completer, metrics, logger)
	if err != nil {
		return nil, err
	}

	api := httpapi.New(cfg, svc, metrics, logger)

	cleanup := func() error {
		return errors.Join(store.Close(), registry.Close())
	}

	return &BuildResult{
		Config:     cfg,
		API:        api,
		Chat:       svc,
		Sessions:   sessions,
		Metrics:    metrics,
		Completion: backend,
		Cleanup:    cleanup,
	}, nil
}

func newCompleter(cfg config.Config, logger *slog.Logger) (llm.Completer, string, error) {
	if cfg.UseMockCompleter() {
		logger.Warn("completion backend: mock (set OPENROUTER_API_KEY for real replies)")
		return llm.NewMockCompleter(), "mock", nil
	}
	c, err := llm.NewOpenAICompleter(llm.OpenAIConfig{
		APIKey:      cfg.CompletionAPIKey,
		BaseURL:     cfg.CompletionBaseURL,
		Model:       cfg.CompletionModel,
		Temperature: float32(cfg.CompletionTemperature),
		Streaming:   cfg.CompletionStreaming,
		Timeout:     cfg.CompletionTimeout,
		MaxRetries:  cfg.CompletionMaxRetries,
	}, logger)
	if err != nil {
		return nil, "", fmt.Errorf("completion client init failed: %w", err)
	}
	logger.Info("completion backend: openai-compatible",
		"base_url", cfg.CompletionBaseURL,
		"model", cfg.CompletionModel,
		"streaming", cfg.CompletionStreaming,
	)
	return c, "openai", nil
}
