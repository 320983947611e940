package events

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// InMemoryRegistry serves a fixed list of events.
type InMemoryRegistry struct {
	events []Event
}

type registryFile struct {
	Events []Event `yaml:"events"`
}

func NewInMemoryRegistry(list []Event) *InMemoryRegistry {
	out := make([]Event, 0, len(list))
	for _, e := range list {
		e.Date = strings.TrimSpace(e.Date)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return &InMemoryRegistry{events: out}
}

// LoadFile reads a YAML document of the form `events: [...]`.
func LoadFile(path string) (*InMemoryRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*InMemoryRegistry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse events yaml: %w", err)
	}
	for _, e := range f.Events {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	return NewInMemoryRegistry(f.Events), nil
}

func (r *InMemoryRegistry) OnDate(_ context.Context, date string) ([]Event, error) {
	var out []Event
	for _, e := range r.events {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *InMemoryRegistry) All(_ context.Context) ([]Event, error) {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out, nil
}

func (r *InMemoryRegistry) Close() error { return nil }
