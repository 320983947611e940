package chat

import (
	"strings"

	"github.com/sahaleey/abhachat/internal/llm"
	"github.com/sahaleey/abhachat/internal/memory"
)

// BuildMessages assembles the completion request: the persona as the system
// message, the retained history in recorded order, then the new user input.
// The persona is trimmed but otherwise sent verbatim regardless of history size.
func BuildMessages(persona string, history []memory.Turn, input string) []llm.Message {
	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: strings.TrimSpace(persona)})
	for _, t := range history {
		out = append(out, llm.Message{Role: roleOf(t.Role), Content: t.Text})
	}
	return append(out, llm.Message{Role: llm.RoleUser, Content: input})
}

func roleOf(r memory.Role) llm.Role {
	if r == memory.RoleAssistant {
		return llm.RoleAssistant
	}
	return llm.RoleUser
}
