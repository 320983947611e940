// Package policy holds the rules applied to user text before it is logged.
package policy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultLogRunes bounds user text written to logs.
const DefaultLogRunes = 200

type redaction struct {
	pattern *regexp.Regexp
	marker  string
}

// Order matters: card numbers would otherwise be taken for phone numbers.
var redactions = []redaction{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
	{regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{16,}\b`), "[REDACTED_KEY]"},
}

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range redactions {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// LogSafe redacts input and truncates it to maxRunes (DefaultLogRunes when
// maxRunes <= 0), appending an ellipsis when cut.
func LogSafe(input string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultLogRunes
	}
	out, _ := RedactPII(strings.TrimSpace(input))
	if utf8.RuneCountInString(out) <= maxRunes {
		return out
	}
	runes := []rune(out)
	return string(runes[:maxRunes]) + "…"
}
