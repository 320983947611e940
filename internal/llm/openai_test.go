package llm

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStream struct {
	chunks []string
	err    error
	i      int
	closed bool
}

func (s *stubStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	if s.i >= len(s.chunks) {
		if s.err != nil {
			return openai.ChatCompletionStreamResponse{}, s.err
		}
		return openai.ChatCompletionStreamResponse{}, io.EOF
	}
	c := s.chunks[s.i]
	s.i++
	return openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{{Delta: openai.ChatCompletionStreamChoiceDelta{Content: c}}},
	}, nil
}

func (s *stubStream) Close() error {
	s.closed = true
	return nil
}

type stubClient struct {
	mu       sync.Mutex
	text     string
	errs     []error
	chunks   []string
	streamEr error
	calls    []openai.ChatCompletionRequest
	streams  []*stubStream
}

func (c *stubClient) nextErr() error {
	if len(c.errs) == 0 {
		return nil
	}
	err := c.errs[0]
	c.errs = c.errs[1:]
	return err
}

func (c *stubClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	if err := c.nextErr(); err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: c.text}}},
	}, nil
}

func (c *stubClient) OpenStream(_ context.Context, req openai.ChatCompletionRequest) (ChunkStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	if err := c.nextErr(); err != nil {
		return nil, err
	}
	s := &stubStream{chunks: c.chunks, err: c.streamEr}
	c.streams = append(c.streams, s)
	return s, nil
}

var testMessages = []Message{
	{Role: RoleSystem, Content: "persona"},
	{Role: RoleUser, Content: "who founded it"},
}

func newBlocking(client ChatClient, retries int) *OpenAICompleter {
	return NewOpenAICompleterWithClient(client, OpenAIConfig{Streaming: false, MaxRetries: retries, RetryBase: 1, RetryCap: 1}, nil)
}

func newStreaming(client ChatClient) *OpenAICompleter {
	return NewOpenAICompleterWithClient(client, OpenAIConfig{Streaming: true}, nil)
}

func TestBlockingReturnsText(t *testing.T) {
	client := &stubClient{text: "Founded by students."}
	var deltas []string
	got, err := newBlocking(client, 0).Complete(context.Background(), testMessages, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Founded by students.", got)
	assert.Equal(t, []string{"Founded by students."}, deltas)

	require.Len(t, client.calls, 1)
	req := client.calls[0]
	assert.Equal(t, DefaultModel, req.Model)
	assert.False(t, req.Stream)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "who founded it", req.Messages[1].Content)
}

func TestStreamingAccumulatesDeltas(t *testing.T) {
	client := &stubClient{chunks: []string{"Founded ", "by ", "students."}}
	var deltas []string
	got, err := newStreaming(client).Complete(context.Background(), testMessages, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Founded by students.", got)
	assert.Equal(t, []string{"Founded ", "by ", "students."}, deltas)
	require.Len(t, client.streams, 1)
	assert.True(t, client.streams[0].closed)
	assert.True(t, client.calls[0].Stream)
}

func TestEmptyResultUsesFallback(t *testing.T) {
	for name, c := range map[string]*OpenAICompleter{
		"blocking":  newBlocking(&stubClient{text: "   "}, 0),
		"streaming": newStreaming(&stubClient{chunks: []string{" ", "\n"}}),
	} {
		t.Run(name, func(t *testing.T) {
			var deltas []string
			got, err := c.Complete(context.Background(), testMessages, func(d string) error {
				deltas = append(deltas, d)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, FallbackText, got)
			assert.Equal(t, []string{FallbackText}, deltas)
		})
	}
}

func TestRateLimitByStatusCode(t *testing.T) {
	cases := map[string]error{
		"api error status":   &openai.APIError{HTTPStatusCode: 429, Message: "slow down"},
		"api error code int": &openai.APIError{Code: 429, Message: "quota"},
		"api error code str": &openai.APIError{Code: "429", Message: "quota"},
		"request error":      &openai.RequestError{HTTPStatusCode: 429, Err: errors.New("too many")},
	}
	for name, upstream := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newBlocking(&stubClient{errs: []error{upstream}}, 0).Complete(context.Background(), testMessages, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRateLimited)
			assert.Equal(t, KindRateLimited, Classify(err))
		})
	}
}

func TestRateLimitByPhrase(t *testing.T) {
	client := &stubClient{chunks: []string{}, streamEr: errors.New("provider said: Rate limit exceeded: free-models-per-day")}
	_, err := newStreaming(client).Complete(context.Background(), testMessages, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestOtherFailureIsUpstream(t *testing.T) {
	for name, upstream := range map[string]error{
		"status 500": &openai.APIError{HTTPStatusCode: 500, Message: "boom"},
		"status 401": &openai.APIError{HTTPStatusCode: 401, Message: "bad key"},
		"plain":      errors.New("connection reset"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newBlocking(&stubClient{errs: []error{upstream}}, 0).Complete(context.Background(), testMessages, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUpstream)
			assert.NotErrorIs(t, err, ErrRateLimited)
			assert.Equal(t, KindUpstream, Classify(err))
		})
	}
}

func TestRetryOnlyRetryableFailures(t *testing.T) {
	client := &stubClient{text: "ok", errs: []error{&openai.APIError{HTTPStatusCode: 503, Message: "busy"}}}
	got, err := newBlocking(client, 2).Complete(context.Background(), testMessages, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Len(t, client.calls, 2)

	limited := &stubClient{text: "ok", errs: []error{&openai.APIError{HTTPStatusCode: 429}}}
	_, err = newBlocking(limited, 2).Complete(context.Background(), testMessages, nil)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, limited.calls, 1)
}

func TestNoRetryByDefault(t *testing.T) {
	client := &stubClient{text: "ok", errs: []error{&openai.APIError{HTTPStatusCode: 503}}}
	_, err := newBlocking(client, 0).Complete(context.Background(), testMessages, nil)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Len(t, client.calls, 1)
}

func TestDeltaHandlerErrorAborts(t *testing.T) {
	stop := errors.New("client gone")
	client := &stubClient{chunks: []string{"a", "b"}}
	_, err := newStreaming(client).Complete(context.Background(), testMessages, func(string) error { return stop })
	require.Error(t, err)
	assert.ErrorIs(t, err, stop)
}

func TestClassifyNil(t *testing.T) {
	assert.Equal(t, KindOK, Classify(nil))
	assert.Equal(t, "rate_limited", KindRateLimited.String())
}

func TestNewOpenAICompleterRequiresKey(t *testing.T) {
	_, err := NewOpenAICompleter(OpenAIConfig{}, nil)
	assert.Error(t, err)

	c, err := NewOpenAICompleter(OpenAIConfig{APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.cfg.Model)
}

func TestMockCompleterEchoesAndRemembers(t *testing.T) {
	m := NewMockCompleter()
	got, err := m.Complete(context.Background(), testMessages, nil)
	require.NoError(t, err)
	assert.Equal(t, "I heard you: who founded it", got)

	got, err = m.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello there"},
		{Role: RoleUser, Content: "again"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "I heard you: again\nI also remember: hello there", got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Complete(ctx, testMessages, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
