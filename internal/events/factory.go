package events

import (
	"context"
	"strings"
)

// NewRegistry creates a postgres-backed registry when a database is
// configured, a file-backed one when an events file is given, and an empty
// registry otherwise.
func NewRegistry(ctx context.Context, databaseURL, file string) (Registry, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresRegistry(ctx, databaseURL)
	}
	if strings.TrimSpace(file) != "" {
		return LoadFile(file)
	}
	return NewInMemoryRegistry(nil), nil
}
