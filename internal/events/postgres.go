package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry reads events from PostgreSQL.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

func NewPostgresRegistry(ctx context.Context, databaseURL string) (*PostgresRegistry, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRegistry{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS union_events (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			host TEXT NOT NULL DEFAULT '',
			event_date DATE NOT NULL,
			event_time TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_union_events_date ON union_events (event_date);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// Insert adds an event; used for seeding.
func (r *PostgresRegistry) Insert(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO union_events (name, host, event_date, event_time, description)
		 VALUES ($1, $2, $3::date, $4, $5)`,
		e.Name, e.Host, e.Date, e.Time, e.Description,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) OnDate(ctx context.Context, date string) ([]Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, host, to_char(event_date, 'YYYY-MM-DD'), event_time, description
		 FROM union_events WHERE event_date = $1::date ORDER BY event_time, id`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query events on %s: %w", date, err)
	}
	return collect(rows)
}

func (r *PostgresRegistry) All(ctx context.Context) ([]Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, host, to_char(event_date, 'YYYY-MM-DD'), event_time, description
		 FROM union_events ORDER BY event_date, event_time, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Name, &e.Host, &e.Date, &e.Time, &e.Description); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRegistry) Close() error {
	r.pool.Close()
	return nil
}
