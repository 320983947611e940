package llm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sahaleey/abhachat/internal/reliability"
)

var (
	ErrRateLimited = errors.New("completion rate limited")
	ErrUpstream    = errors.New("completion upstream failure")
)

// rateLimitPhrase is matched case-insensitively in provider error text when no
// status code is available.
const rateLimitPhrase = "rate limit exceeded"

// Kind is the normalized outcome of a completion call.
type Kind int

const (
	KindOK Kind = iota
	KindRateLimited
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream_failure"
	default:
		return "unknown"
	}
}

// Error carries the normalized kind plus the provider's status and cause.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrUpstream:
		return e.Kind == KindUpstream
	}
	return false
}

// Retryable reports whether a retry could succeed. Rate limits never qualify.
func (e *Error) Retryable() bool {
	return e.Kind == KindUpstream && reliability.IsRetryableHTTPStatus(e.Status)
}

// Classify maps any error returned by a Completer to its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	default:
		return KindUpstream
	}
}

// normalize wraps a provider failure into *Error. The cause stays reachable
// through Unwrap, so context.Canceled still matches.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	status := statusOf(err)
	if reliability.IsRateLimitStatus(status) || strings.Contains(strings.ToLower(err.Error()), rateLimitPhrase) {
		return &Error{Kind: KindRateLimited, Status: status, Err: err}
	}
	return &Error{Kind: KindUpstream, Status: status, Err: err}
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode > 0 {
			return apiErr.HTTPStatusCode
		}
		// Streamed errors arrive inside the body with only the provider code set.
		return codeAsStatus(apiErr.Code)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func codeAsStatus(code any) int {
	switch v := code.(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return 0
}
