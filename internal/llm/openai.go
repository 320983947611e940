package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sahaleey/abhachat/internal/observability"
	"github.com/sahaleey/abhachat/internal/reliability"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "meta-llama/llama-3.3-8b-instruct:free"
)

// ChunkStream yields streamed completion chunks until io.EOF.
type ChunkStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// ChatClient is the subset of the go-openai client the gateway needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	OpenStream(ctx context.Context, req openai.ChatCompletionRequest) (ChunkStream, error)
}

// OpenAIConfig controls the OpenAI-compatible gateway.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Streaming   bool
	Timeout     time.Duration
	MaxRetries  int
	RetryBase   time.Duration
	RetryCap    time.Duration
}

// OpenAICompleter calls an OpenAI-compatible chat completion endpoint.
type OpenAICompleter struct {
	client ChatClient
	cfg    OpenAIConfig
	logger *slog.Logger
}

type openAIClient struct {
	c *openai.Client
}

func (o openAIClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return o.c.CreateChatCompletion(ctx, req)
}

func (o openAIClient) OpenStream(ctx context.Context, req openai.ChatCompletionRequest) (ChunkStream, error) {
	stream, err := o.c.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func NewOpenAICompleter(cfg OpenAIConfig, logger *slog.Logger) (*OpenAICompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("completion api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(firstNonEmpty(cfg.BaseURL, DefaultBaseURL), "/")
	clientCfg.HTTPClient = &http.Client{Timeout: durationOr(cfg.Timeout, 60*time.Second)}
	return NewOpenAICompleterWithClient(openAIClient{c: openai.NewClientWithConfig(clientCfg)}, cfg, logger), nil
}

// NewOpenAICompleterWithClient wires an existing client, typically a test stub.
func NewOpenAICompleterWithClient(client ChatClient, cfg OpenAIConfig, logger *slog.Logger) *OpenAICompleter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Model = firstNonEmpty(cfg.Model, DefaultModel)
	cfg.RetryBase = durationOr(cfg.RetryBase, 250*time.Millisecond)
	cfg.RetryCap = durationOr(cfg.RetryCap, 4*time.Second)
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &OpenAICompleter{client: client, cfg: cfg, logger: logger}
}

func (c *OpenAICompleter) Complete(ctx context.Context, messages []Message, onDelta DeltaHandler) (string, error) {
	ctx, span := observability.StartSpan(ctx, "llm.complete",
		trace.WithAttributes(
			attribute.String("llm.model", c.cfg.Model),
			attribute.Bool("llm.streaming", c.cfg.Streaming),
			attribute.Int("llm.message_count", len(messages)),
		),
	)
	defer span.End()

	req := c.request(messages)

	var (
		text    string
		err     error
		emitted bool
	)
	for attempt := 0; ; attempt++ {
		if c.cfg.Streaming {
			text, emitted, err = c.stream(ctx, req, onDelta)
		} else {
			text, err = c.blocking(ctx, req)
		}
		if err == nil {
			break
		}
		err = normalize(err)
		if attempt >= c.cfg.MaxRetries || emitted || !retryable(err) {
			break
		}
		wait := reliability.ExponentialBackoff(attempt, c.cfg.RetryBase, c.cfg.RetryCap)
		c.logger.Warn("completion failed, retrying", "attempt", attempt+1, "wait", wait, "error", err)
		if sleepErr := reliability.Sleep(ctx, wait); sleepErr != nil {
			break
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Classify(err).String())
		return "", fmt.Errorf("complete: %w", err)
	}

	if strings.TrimSpace(text) == "" {
		span.SetAttributes(attribute.Bool("llm.fallback", true))
		text = FallbackText
		if !c.cfg.Streaming || !emitted {
			if err := emit(onDelta, text); err != nil {
				return "", err
			}
		}
	} else if !c.cfg.Streaming {
		if err := emit(onDelta, text); err != nil {
			return "", err
		}
	}
	span.SetAttributes(attribute.Int("llm.response_chars", len(text)))
	return text, nil
}

func (c *OpenAICompleter) request(messages []Message) openai.ChatCompletionRequest {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	temp := c.cfg.Temperature
	if temp == 0 {
		// go-openai drops a zero temperature from the payload.
		temp = math.SmallestNonzeroFloat32
	}
	return openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    out,
		Temperature: temp,
		Stream:      c.cfg.Streaming,
	}
}

func (c *OpenAICompleter) blocking(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// stream accumulates chunk deltas into one string. emitted reports whether any
// non-blank delta already reached onDelta.
func (c *OpenAICompleter) stream(ctx context.Context, req openai.ChatCompletionRequest, onDelta DeltaHandler) (string, bool, error) {
	s, err := c.client.OpenStream(ctx, req)
	if err != nil {
		return "", false, err
	}
	defer s.Close()

	var (
		out     strings.Builder
		emitted bool
	)
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return out.String(), emitted, nil
		}
		if err != nil {
			return "", emitted, err
		}
		for _, choice := range chunk.Choices {
			delta := choice.Delta.Content
			if delta == "" {
				continue
			}
			out.WriteString(delta)
			// Leading whitespace is held back so a blank completion can still be
			// replaced by the fallback text.
			if !emitted && strings.TrimSpace(out.String()) == "" {
				continue
			}
			if !emitted {
				delta = out.String()
			}
			emitted = true
			if err := emit(onDelta, delta); err != nil {
				return "", emitted, err
			}
		}
	}
}

func retryable(err error) bool {
	var typed *Error
	return errors.As(err, &typed) && typed.Retryable()
}

func emit(onDelta DeltaHandler, text string) error {
	if onDelta == nil {
		return nil
	}
	return onDelta(text)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
