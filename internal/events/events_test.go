package events

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
events:
  - name: Talent Night
    host: English Wing
    date: "2026-10-16"
    time: "19:00"
    description: Songs, poems and skits.
  - name: Quiz Orbit
    host: IQ Orbit
    date: "2026-10-16"
    time: "10:00"
    description: General knowledge quiz.
  - name: Urdu Mushaira
    host: Zuban e Ghalib
    date: "2026-10-20"
    time: "16:30"
`

func TestParseAndLookupByDate(t *testing.T) {
	reg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	got, err := reg.OnDate(context.Background(), "2026-10-16")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Quiz Orbit", got[0].Name, "events are ordered by time")
	assert.Equal(t, "Talent Night", got[1].Name)

	none, err := reg.OnDate(context.Background(), "2026-10-17")
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := reg.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestParseRejectsBadDate(t *testing.T) {
	_, err := Parse([]byte("events:\n  - name: X\n    date: 16/10/2026\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), DateLayout)
}

func TestNewRegistryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	reg, err := NewRegistry(context.Background(), "", path)
	require.NoError(t, err)
	defer reg.Close()

	all, err := reg.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNewRegistryEmptyByDefault(t *testing.T) {
	reg, err := NewRegistry(context.Background(), "", "")
	require.NoError(t, err)
	all, err := reg.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFormatDay(t *testing.T) {
	out := FormatDay([]Event{
		{Name: "Quiz Orbit", Host: "IQ Orbit", Time: "10:00", Description: "General knowledge quiz."},
		{Name: "Talent Night", Host: "English Wing", Time: "19:00"},
	})
	want := "🎉 Quiz Orbit\nHost: IQ Orbit\nTime: 10:00\nGeneral knowledge quiz." +
		"\n\n" +
		"🎉 Talent Night\nHost: English Wing\nTime: 19:00"
	assert.Equal(t, want, out)
}

func TestSnapshot(t *testing.T) {
	assert.Empty(t, Snapshot(nil))
	out := Snapshot([]Event{{Name: "Quiz Orbit", Host: "IQ Orbit", Date: "2026-10-16", Time: "10:00"}})
	assert.Equal(t, "=== Upcoming Events ===\n- 2026-10-16: Quiz Orbit (host: IQ Orbit) at 10:00", out)
}

func TestPostgresRegistry(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	reg, err := NewPostgresRegistry(ctx, dsn)
	require.NoError(t, err)
	defer reg.Close()

	_, err = reg.pool.Exec(ctx, `TRUNCATE union_events`)
	require.NoError(t, err)
	require.NoError(t, reg.Insert(ctx, Event{Name: "Talent Night", Host: "English Wing", Date: "2026-10-16", Time: "19:00"}))
	require.NoError(t, reg.Insert(ctx, Event{Name: "Quiz Orbit", Host: "IQ Orbit", Date: "2026-10-16", Time: "10:00"}))

	got, err := reg.OnDate(ctx, "2026-10-16")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Quiz Orbit", got[0].Name)
	assert.Equal(t, "2026-10-16", got[0].Date)
}
