package memory

import (
	"context"
	"errors"
	"time"
)

// Role tags who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultHistoryPairs is the number of user+assistant exchanges retained per
// session when no explicit bound is configured.
const DefaultHistoryPairs = 10

var ErrInvalidTurn = errors.New("invalid turn")

// Turn stores a single user or assistant conversational turn.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Store retains the recent conversation of every session.
type Store interface {
	// History returns the retained turns of a session, oldest first. Unknown
	// sessions are created empty.
	History(ctx context.Context, sessionID string) ([]Turn, error)
	// Peek returns the retained turns of a session without creating it. ok is
	// false for sessions the store has never seen.
	Peek(ctx context.Context, sessionID string) (turns []Turn, ok bool, err error)
	// Append adds a turn, dropping the oldest turns beyond the retention bound.
	Append(ctx context.Context, sessionID string, role Role, text string) error
	Close() error
}

func (r Role) valid() bool {
	return r == RoleUser || r == RoleAssistant
}
