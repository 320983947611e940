package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockCompleter provides deterministic local replies when no provider key is configured.
type MockCompleter struct{}

func NewMockCompleter() *MockCompleter { return &MockCompleter{} }

func (m *MockCompleter) Complete(ctx context.Context, messages []Message, onDelta DeltaHandler) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	text := buildMockReply(messages)
	if err := emit(onDelta, text); err != nil {
		return "", err
	}
	return text, nil
}

func buildMockReply(messages []Message) string {
	var input, last string
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role == RoleSystem {
			break
		}
		if input == "" && m.Role == RoleUser {
			input = strings.TrimSpace(m.Content)
			continue
		}
		if input != "" && last == "" {
			last = strings.TrimSpace(m.Content)
		}
	}
	if input == "" {
		return FallbackText
	}
	if last == "" {
		return fmt.Sprintf("I heard you: %s", input)
	}
	return fmt.Sprintf("I heard you: %s\nI also remember: %s", input, last)
}
