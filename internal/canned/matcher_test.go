package canned

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahaleey/abhachat/internal/events"
)

var fixedNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func newDefaultMatcher(t *testing.T, reg events.Registry) *Matcher {
	t.Helper()
	m, err := NewMatcher(DefaultRules(), reg, nil)
	require.NoError(t, err)
	return m
}

func TestCriticismPhrasesReturnRebuttal(t *testing.T) {
	rules := DefaultRules()
	m := newDefaultMatcher(t, nil)

	for _, phrase := range rules.Criticism.Phrases {
		for _, input := range []string{phrase, "Honestly " + phrase + "!!", "WELL " + phrase} {
			got, ok := m.Match(context.Background(), input, fixedNow)
			require.True(t, ok, "input %q should match", input)
			assert.Equal(t, SourceCriticism, got.Source, "input %q", input)
			assert.Equal(t, rules.Criticism.Response, got.Text, "input %q", input)
		}
	}
}

func TestCriticismPatternsCoverVariants(t *testing.T) {
	m := newDefaultMatcher(t, nil)
	for _, input := range []string{
		"ABHA really is so useless",
		"abha union is a waste of time",
		"abha is kinda boring tbh",
	} {
		got, ok := m.Match(context.Background(), input, fixedNow)
		require.True(t, ok, "input %q", input)
		assert.Equal(t, SourceCriticism, got.Source)
	}
}

func TestCriticismWinsOverFAQ(t *testing.T) {
	m := newDefaultMatcher(t, nil)
	got, ok := m.Match(context.Background(), "what is abha? abha is bad", fixedNow)
	require.True(t, ok)
	assert.Equal(t, SourceCriticism, got.Source)
}

func TestFAQExactMappedAnswer(t *testing.T) {
	rules := DefaultRules()
	m := newDefaultMatcher(t, nil)

	for _, e := range rules.FAQ {
		got, ok := m.Match(context.Background(), "Hey, "+e.Trigger+"?", fixedNow)
		require.True(t, ok, "trigger %q", e.Trigger)
		assert.Equal(t, SourceFAQ, got.Source)
		assert.Equal(t, e.Response, got.Text)
	}
}

func TestFAQEarliestDeclaredTriggerWins(t *testing.T) {
	rules := DefaultRules()
	m := newDefaultMatcher(t, nil)

	// Contains both "what events" and "programs"; "what events" is declared first.
	got, ok := m.Match(context.Background(), "programs and what events do you run", fixedNow)
	require.True(t, ok)
	assert.Equal(t, "what events", got.Trigger)
	assert.Equal(t, rules.FAQ[2].Response, got.Text)
}

func TestNoMatch(t *testing.T) {
	m := newDefaultMatcher(t, nil)
	for _, input := range []string{"who founded it", "", "   ", "tell me a joke"} {
		_, ok := m.Match(context.Background(), input, fixedNow)
		assert.False(t, ok, "input %q", input)
	}
}

func TestTodaySpecialListsEvents(t *testing.T) {
	reg := events.NewInMemoryRegistry([]events.Event{
		{Name: "Talent Night", Host: "English Wing", Date: "2026-10-16", Time: "19:00", Description: "Songs and skits."},
		{Name: "Quiz Orbit", Host: "IQ Orbit", Date: "2026-10-16", Time: "10:00"},
		{Name: "Mushaira", Host: "Zuban e Ghalib", Date: "2026-10-17", Time: "16:00"},
	})
	m := newDefaultMatcher(t, reg)

	got, ok := m.Match(context.Background(), "Anything special today?", fixedNow)
	require.True(t, ok)
	assert.Equal(t, SourceToday, got.Source)
	assert.Equal(t,
		"🎉 Quiz Orbit\nHost: IQ Orbit\nTime: 10:00\n\n🎉 Talent Night\nHost: English Wing\nTime: 19:00\nSongs and skits.",
		got.Text)
}

func TestTodaySpecialNothingScheduled(t *testing.T) {
	rules := DefaultRules()
	m := newDefaultMatcher(t, events.NewInMemoryRegistry(nil))

	got, ok := m.Match(context.Background(), "what's special today", fixedNow)
	require.True(t, ok)
	assert.Equal(t, rules.Today.EmptyResponse, got.Text)
}

func TestTodaySpecialNeedsBothTokens(t *testing.T) {
	m := newDefaultMatcher(t, events.NewInMemoryRegistry(nil))
	_, ok := m.Match(context.Background(), "what is happening today", fixedNow)
	assert.False(t, ok)
}

func TestTodaySpecialRegistryErrorFallsThrough(t *testing.T) {
	m := newDefaultMatcher(t, failingRegistry{})
	_, ok := m.Match(context.Background(), "special programs today", fixedNow)
	// The today rule declines and the FAQ "programs" entry answers instead.
	require.True(t, ok)
}

func TestTodayRuleEvaluatedBeforeFAQ(t *testing.T) {
	m := newDefaultMatcher(t, events.NewInMemoryRegistry(nil))
	got, ok := m.Match(context.Background(), "any special programs today", fixedNow)
	require.True(t, ok)
	assert.Equal(t, SourceToday, got.Source)
}

func TestParseRulesValidation(t *testing.T) {
	_, err := ParseRules([]byte("faq:\n  - trigger: hi\n"))
	require.Error(t, err)

	_, err = ParseRules([]byte("criticism:\n  response: no\n  patterns: ['(']\n"))
	require.Error(t, err)

	_, err = ParseRules([]byte("faq:\n  - {trigger: hi, response: a}\n  - {trigger: HI, response: b}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate trigger")
}

func TestCustomRulesKeepDeclaredOrder(t *testing.T) {
	r, err := ParseRules([]byte(`
faq:
  - trigger: hello
    response: first
  - trigger: hello there
    response: second
`))
	require.NoError(t, err)
	m, err := NewMatcher(r, nil, nil)
	require.NoError(t, err)

	got, ok := m.Match(context.Background(), "hello there", fixedNow)
	require.True(t, ok)
	assert.Equal(t, "first", got.Text)
	assert.Len(t, m.Rules(), 2)
}

type failingRegistry struct{}

func (failingRegistry) OnDate(context.Context, string) ([]events.Event, error) {
	return nil, errors.New("db down")
}
func (failingRegistry) All(context.Context) ([]events.Event, error) { return nil, errors.New("db down") }
func (failingRegistry) Close() error                                { return nil }
