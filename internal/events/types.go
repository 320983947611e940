// Package events holds the registry of scheduled union events used by the
// "what's special today" reply and, optionally, embedded into the persona.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the exact-match key format for event dates.
const DateLayout = "2006-01-02"

// Event is one scheduled event.
type Event struct {
	Name        string `yaml:"name" json:"name"`
	Host        string `yaml:"host" json:"host"`
	Date        string `yaml:"date" json:"date"`
	Time        string `yaml:"time" json:"time"`
	Description string `yaml:"description" json:"description"`
}

// Registry looks up scheduled events.
type Registry interface {
	// OnDate returns the events whose date equals date (DateLayout), ordered by time.
	OnDate(ctx context.Context, date string) ([]Event, error)
	All(ctx context.Context) ([]Event, error)
	Close() error
}

// Validate checks the fields the registry relies on.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("event name is required")
	}
	if _, err := time.Parse(DateLayout, strings.TrimSpace(e.Date)); err != nil {
		return fmt.Errorf("event %q: date %q must use %s", e.Name, e.Date, DateLayout)
	}
	return nil
}
