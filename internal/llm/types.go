// Package llm is the completion gateway: it submits a role-tagged message list
// to an OpenAI-compatible completion service and normalizes the outcome.
package llm

import "context"

// Role tags a message in the outbound sequence.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FallbackText replaces an empty or whitespace-only completion.
const FallbackText = "Sorry, I couldn’t understand that. Could you try asking in another way?"

// Message is one entry of the completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DeltaHandler receives streamed text fragments. Returning an error aborts the call.
type DeltaHandler func(delta string) error

// Completer turns a message list into one generated text.
//
// Failures are either ErrRateLimited or ErrUpstream (see Classify). An empty
// result is never returned: it is replaced with FallbackText.
type Completer interface {
	Complete(ctx context.Context, messages []Message, onDelta DeltaHandler) (string, error)
}
