// Package persona provides the system prompt sent first in every completion
// request.
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/sahaleey/abhachat/internal/events"
)

//go:embed abha.txt
var defaultPrompt string

// Default returns the built-in persona, trimmed.
func Default() string {
	return strings.TrimSpace(defaultPrompt)
}

// Load reads the persona from path, falling back to the built-in text when
// path is empty.
func Load(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read persona file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("persona file %s is empty", path)
	}
	return text, nil
}

// WithEvents appends a static snapshot of the event registry to the prompt.
// The snapshot is taken once; later registry changes are not reflected.
func WithEvents(prompt string, list []events.Event) string {
	prompt = strings.TrimSpace(prompt)
	snapshot := events.Snapshot(list)
	if snapshot == "" {
		return prompt
	}
	return prompt + "\n\n" + snapshot
}
