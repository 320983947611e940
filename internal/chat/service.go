// Package chat runs one chat request through the pipeline: canned matcher,
// history read, request builder, completion gateway and response recorder.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sahaleey/abhachat/internal/canned"
	"github.com/sahaleey/abhachat/internal/llm"
	"github.com/sahaleey/abhachat/internal/memory"
	"github.com/sahaleey/abhachat/internal/observability"
	"github.com/sahaleey/abhachat/internal/policy"
	"github.com/sahaleey/abhachat/internal/session"
)

const (
	DefaultSessionID       = "default"
	DefaultMaxMessageChars = 1000
)

// Source names where a reply came from.
type Source string

const (
	SourceCriticism Source = Source(canned.SourceCriticism)
	SourceToday     Source = Source(canned.SourceToday)
	SourceFAQ       Source = Source(canned.SourceFAQ)
	SourceModel     Source = "model"
)

// ErrInvalidInput wraps every validation failure of the inbound message.
var ErrInvalidInput = errors.New("invalid input")

// Reply is the outcome of one successful chat request.
type Reply struct {
	Text      string
	Source    Source
	Timestamp time.Time
}

type Config struct {
	Persona          string
	DefaultSessionID string
	MaxMessageChars  int
	// Now is the clock used for the today's-special rule and reply timestamps.
	Now func() time.Time
}

type Service struct {
	cfg       Config
	matcher   *canned.Matcher
	store     memory.Store
	sessions  *session.Manager
	completer llm.Completer
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func NewService(
	cfg Config,
	matcher *canned.Matcher,
	store memory.Store,
	sessions *session.Manager,
	completer llm.Completer,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*Service, error) {
	if matcher == nil || store == nil || sessions == nil || completer == nil {
		return nil, errors.New("chat service requires matcher, store, sessions and completer")
	}
	cfg.Persona = strings.TrimSpace(cfg.Persona)
	if cfg.Persona == "" {
		return nil, errors.New("persona prompt is empty")
	}
	if strings.TrimSpace(cfg.DefaultSessionID) == "" {
		cfg.DefaultSessionID = DefaultSessionID
	}
	if cfg.MaxMessageChars <= 0 {
		cfg.MaxMessageChars = DefaultMaxMessageChars
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		matcher:   matcher,
		store:     store,
		sessions:  sessions,
		completer: completer,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// SessionID resolves an empty id to the configured default.
func (s *Service) SessionID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.cfg.DefaultSessionID
}

// Validate checks the inbound message before any pipeline stage runs.
func (s *Service) Validate(message string) error {
	n := utf8.RuneCountInString(message)
	switch {
	case n == 0:
		return fmt.Errorf("%w: message must contain at least 1 character", ErrInvalidInput)
	case n > s.cfg.MaxMessageChars:
		return fmt.Errorf("%w: message must contain at most %d characters", ErrInvalidInput, s.cfg.MaxMessageChars)
	}
	return nil
}

// Reply answers one message on sessionID. onDelta, when set, receives the
// reply text as it is produced; canned replies arrive as a single delta.
//
// A produced reply is recorded as a user turn followed by an assistant turn.
// Failed requests record nothing.
func (s *Service) Reply(ctx context.Context, sessionID, message string, onDelta llm.DeltaHandler) (Reply, error) {
	start := time.Now()
	sessionID = s.SessionID(sessionID)
	if err := s.Validate(message); err != nil {
		return Reply{}, err
	}
	input := strings.TrimSpace(message)
	if input == "" {
		// Whitespace-only input still goes to the model as sent.
		input = message
	}
	logger := observability.LoggerFrom(ctx, s.logger).With("session_id", sessionID)

	ctx, span := observability.StartSpan(ctx, "chat.reply", trace.WithAttributes(
		attribute.String("chat.session_id", sessionID),
		attribute.Int("chat.input_chars", utf8.RuneCountInString(input)),
	))
	defer span.End()

	release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("acquire session %s: %w", sessionID, err)
	}
	defer release()

	reply, err := s.reply(ctx, logger, sessionID, input, onDelta)
	if err != nil {
		kind := llm.Classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
		if s.metrics != nil {
			s.metrics.ChatErrors.WithLabelValues(kind.String()).Inc()
		}
		logger.Error("chat request failed",
			"kind", kind.String(),
			"input", policy.LogSafe(input, 0),
			"error", err,
		)
		return Reply{}, err
	}

	span.SetAttributes(attribute.String("chat.source", string(reply.Source)))
	s.metrics.ObserveStage(observability.StageChatTotal, time.Since(start))
	if s.metrics != nil {
		s.metrics.ChatReplies.WithLabelValues(string(reply.Source)).Inc()
	}
	logger.Info("chat reply", "source", reply.Source, "duration", time.Since(start))
	return reply, nil
}

func (s *Service) reply(ctx context.Context, logger *slog.Logger, sessionID, input string, onDelta llm.DeltaHandler) (Reply, error) {
	now := s.cfg.Now()

	matchStart := time.Now()
	match, ok := s.matcher.Match(ctx, input, now)
	s.metrics.ObserveStage(observability.StageCannedMatch, time.Since(matchStart))
	if ok {
		logger.Debug("canned reply", "source", match.Source, "trigger", match.Trigger)
		if onDelta != nil {
			if err := onDelta(match.Text); err != nil {
				return Reply{}, err
			}
		}
		if err := s.record(ctx, sessionID, input, match.Text); err != nil {
			return Reply{}, err
		}
		return Reply{Text: match.Text, Source: Source(match.Source), Timestamp: now}, nil
	}

	historyStart := time.Now()
	history, err := s.store.History(ctx, sessionID)
	s.metrics.ObserveStage(observability.StageHistoryRead, time.Since(historyStart))
	if err != nil {
		return Reply{}, fmt.Errorf("read history: %w", err)
	}

	messages := BuildMessages(s.cfg.Persona, history, input)

	completionStart := time.Now()
	text, err := s.completer.Complete(ctx, messages, onDelta)
	elapsed := time.Since(completionStart)
	s.metrics.ObserveStage(observability.StageCompletion, elapsed)
	if s.metrics != nil {
		s.metrics.ObserveUpstreamLatency(elapsed)
	}
	if err != nil {
		return Reply{}, err
	}
	if text == llm.FallbackText {
		s.metrics.CountIndicator("fallback")
	}

	if err := s.record(ctx, sessionID, input, text); err != nil {
		return Reply{}, err
	}
	return Reply{Text: text, Source: SourceModel, Timestamp: s.cfg.Now()}, nil
}

// record appends the exchange as a user turn then an assistant turn. A blank
// input leaves history untouched so stored turns always alternate.
func (s *Service) record(ctx context.Context, sessionID, input, text string) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	if err := s.store.Append(ctx, sessionID, memory.RoleUser, input); err != nil {
		return fmt.Errorf("record user turn: %w", err)
	}
	if err := s.store.Append(ctx, sessionID, memory.RoleAssistant, text); err != nil {
		return fmt.Errorf("record assistant turn: %w", err)
	}
	s.sessions.RecordExchange(sessionID)
	return nil
}

// History returns the retained turns of sessionID for inspection. Unlike the
// pipeline's read it never creates the session, so an unknown id yields an
// empty list and leaves the store unchanged.
func (s *Service) History(ctx context.Context, sessionID string) ([]memory.Turn, error) {
	turns, _, err := s.store.Peek(ctx, s.SessionID(sessionID))
	return turns, err
}

// Sessions lists known sessions, most recently active first.
func (s *Service) Sessions() []session.Info {
	return s.sessions.List()
}
