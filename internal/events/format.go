package events

import (
	"fmt"
	"strings"
)

// FormatEvent renders one event as a short multi-line block.
func FormatEvent(e Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 %s", strings.TrimSpace(e.Name))
	if host := strings.TrimSpace(e.Host); host != "" {
		fmt.Fprintf(&b, "\nHost: %s", host)
	}
	if t := strings.TrimSpace(e.Time); t != "" {
		fmt.Fprintf(&b, "\nTime: %s", t)
	}
	if d := strings.TrimSpace(e.Description); d != "" {
		fmt.Fprintf(&b, "\n%s", d)
	}
	return b.String()
}

// FormatDay joins the blocks of several events with blank lines.
func FormatDay(list []Event) string {
	blocks := make([]string, 0, len(list))
	for _, e := range list {
		blocks = append(blocks, FormatEvent(e))
	}
	return strings.Join(blocks, "\n\n")
}

// Snapshot serializes the whole registry as a prompt section.
func Snapshot(list []Event) string {
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("=== Upcoming Events ===")
	for _, e := range list {
		fmt.Fprintf(&b, "\n- %s: %s", e.Date, strings.TrimSpace(e.Name))
		if host := strings.TrimSpace(e.Host); host != "" {
			fmt.Fprintf(&b, " (host: %s)", host)
		}
		if t := strings.TrimSpace(e.Time); t != "" {
			fmt.Fprintf(&b, " at %s", t)
		}
		if d := strings.TrimSpace(e.Description); d != "" {
			fmt.Fprintf(&b, ". %s", d)
		}
	}
	return b.String()
}
