package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIIUnchanged(t *testing.T) {
	out, changed := RedactPII("what is abha")
	if changed || out != "what is abha" {
		t.Fatalf("RedactPII() = %q, %v", out, changed)
	}
}

func TestLogSafeTruncatesRunes(t *testing.T) {
	got := LogSafe("  ദാറുൽ ഹുദാ abha  ", 4)
	if got != "ദാറു…" {
		t.Fatalf("LogSafe() = %q", got)
	}
	if got := LogSafe("key sk-abcdefghijklmnop1234", 0); strings.Contains(got, "sk-") {
		t.Fatalf("LogSafe() leaked key: %q", got)
	}
}
