package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// InMemoryStore keeps every session's turns in process memory. Nothing is
// expired or persisted; a restart forgets all sessions.
type InMemoryStore struct {
	mu       sync.RWMutex
	maxTurns int
	sessions map[string][]Turn
}

// NewInMemoryStore retains the most recent historyPairs user+assistant
// exchanges (2*historyPairs turns) per session.
func NewInMemoryStore(historyPairs int) *InMemoryStore {
	if historyPairs <= 0 {
		historyPairs = DefaultHistoryPairs
	}
	return &InMemoryStore{
		maxTurns: 2 * historyPairs,
		sessions: make(map[string][]Turn),
	}
}

// MaxTurns reports the per-session retention bound.
func (s *InMemoryStore) MaxTurns() int { return s.maxTurns }

func (s *InMemoryStore) History(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.RLock()
	arr, ok := s.sessions[sessionID]
	if ok {
		out := make([]Turn, len(arr))
		copy(out, arr)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		s.sessions[sessionID] = nil
	}
	return []Turn{}, nil
}

func (s *InMemoryStore) Peek(_ context.Context, sessionID string) ([]Turn, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr, ok := s.sessions[sessionID]
	out := make([]Turn, len(arr))
	copy(out, arr)
	return out, ok, nil
}

func (s *InMemoryStore) Append(_ context.Context, sessionID string, role Role, text string) error {
	if !role.valid() {
		return fmt.Errorf("%w: role %q", ErrInvalidTurn, role)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidTurn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	arr := append(s.sessions[sessionID], Turn{Role: role, Text: text, At: time.Now().UTC()})
	if over := len(arr) - s.maxTurns; over > 0 {
		// Copy the tail so the dropped prefix does not pin the old backing array.
		trimmed := make([]Turn, s.maxTurns)
		copy(trimmed, arr[over:])
		arr = trimmed
	}
	s.sessions[sessionID] = arr
	return nil
}

// Len returns the number of sessions ever referenced.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *InMemoryStore) Close() error { return nil }
