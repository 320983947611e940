package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrNotFound = errors.New("session not found")

type entry struct {
	info Info
	// turn is a one-slot semaphore held for the duration of a request.
	turn chan struct{}
}

// Manager tracks sessions by caller-supplied id. Sessions are created on first
// reference and never expire.
//
// When serialization is enabled, Acquire hands out an exclusive per-session
// lock so a request's history read, completion call and recording cannot
// interleave with another request on the same session. When disabled, two
// concurrent requests on one session may both read the same history and
// append in either order; that race is accepted as best-effort behaviour.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*entry
	serialize bool
	onCreate  func(Info)
}

func NewManager(serialize bool) *Manager {
	return &Manager{
		sessions:  make(map[string]*entry),
		serialize: serialize,
	}
}

// SetCreateHook registers a callback fired after a session is first seen.
func (m *Manager) SetCreateHook(hook func(Info)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCreate = hook
}

// Serialized reports whether Acquire enforces per-session exclusion.
func (m *Manager) Serialized() bool { return m.serialize }

// Acquire marks the session active and, when serialization is on, waits for
// exclusive access. The returned release func must be called exactly once.
func (m *Manager) Acquire(ctx context.Context, sessionID string) (func(), error) {
	e := m.touch(sessionID)
	if !m.serialize {
		return func() {}, nil
	}

	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-e.turn })
	}, nil
}

// RecordExchange counts one completed user+assistant exchange.
func (m *Manager) RecordExchange(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	e.info.Exchanges++
	e.info.LastActivityAt = time.Now().UTC()
}

func (m *Manager) Get(sessionID string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return Info{}, ErrNotFound
	}
	return e.info, nil
}

// List returns every known session, most recently active first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	out := make([]Info, 0, len(m.sessions))
	for _, e := range m.sessions {
		out = append(out, e.info)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) touch(sessionID string) *entry {
	now := time.Now().UTC()

	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if ok {
		e.info.LastActivityAt = now
		m.mu.Unlock()
		return e
	}
	e = &entry{
		info: Info{
			ID:             sessionID,
			StartedAt:      now,
			LastActivityAt: now,
		},
		turn: make(chan struct{}, 1),
	}
	m.sessions[sessionID] = e
	hook := m.onCreate
	info := e.info
	m.mu.Unlock()

	if hook != nil {
		hook(info)
	}
	return e
}
