package session

import "time"

// Info describes a conversation session known to the process.
type Info struct {
	ID             string    `json:"session_id"`
	Exchanges      int       `json:"exchanges"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}
