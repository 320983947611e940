// Package canned answers a fixed set of inputs without consulting the
// completion service: criticism of the union, the "what's special today"
// question, and a small FAQ table.
package canned

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sahaleey/abhachat/internal/events"
)

// Source identifies which rule bucket produced a canned reply.
type Source string

const (
	SourceCriticism Source = "criticism"
	SourceToday     Source = "today"
	SourceFAQ       Source = "faq"
)

// Match is a canned reply.
type Match struct {
	Source  Source
	Trigger string
	Text    string
}

// Rule pairs a predicate over the lowercased input with a responder.
// Respond may decline (ok=false), in which case evaluation continues.
type Rule struct {
	Source  Source
	Trigger string
	When    func(lower string) bool
	Respond func(ctx context.Context, now time.Time) (text string, ok bool)
}

// Matcher evaluates rules in order; the first rule that fires wins.
type Matcher struct {
	rules []Rule
}

// NewMatcher builds the ordered rule list: criticism phrases and patterns,
// then the today's-special rule, then FAQ entries in declared order.
// registry may be nil, in which case nothing is ever scheduled.
func NewMatcher(r Rules, registry events.Registry, logger *slog.Logger) (*Matcher, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var rules []Rule
	rebuttal := fixed(strings.TrimSpace(r.Criticism.Response))
	for _, phrase := range r.Criticism.Phrases {
		phrase := normalize(phrase)
		if phrase == "" {
			continue
		}
		rules = append(rules, Rule{
			Source:  SourceCriticism,
			Trigger: phrase,
			When:    contains(phrase),
			Respond: rebuttal,
		})
	}
	for _, p := range r.Criticism.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile criticism pattern %q: %w", p, err)
		}
		rules = append(rules, Rule{
			Source:  SourceCriticism,
			Trigger: p,
			When:    re.MatchString,
			Respond: rebuttal,
		})
	}

	if len(r.Today.TodayTokens) > 0 {
		rules = append(rules, todayRule(r.Today, registry, logger))
	}

	for _, e := range r.FAQ {
		trigger := normalize(e.Trigger)
		rules = append(rules, Rule{
			Source:  SourceFAQ,
			Trigger: trigger,
			When:    contains(trigger),
			Respond: fixed(strings.TrimSpace(e.Response)),
		})
	}

	return &Matcher{rules: rules}, nil
}

// Match returns the canned reply for text, if any. It never fails: a rule
// that cannot answer simply does not match.
func (m *Matcher) Match(ctx context.Context, text string, now time.Time) (Match, bool) {
	lower := normalize(text)
	if lower == "" {
		return Match{}, false
	}
	for _, rule := range m.rules {
		if !rule.When(lower) {
			continue
		}
		out, ok := rule.Respond(ctx, now)
		if !ok {
			continue
		}
		return Match{Source: rule.Source, Trigger: rule.Trigger, Text: out}, true
	}
	return Match{}, false
}

// Rules exposes the compiled rule order.
func (m *Matcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

func todayRule(cfg TodayRules, registry events.Registry, logger *slog.Logger) Rule {
	todayTokens := normalizeAll(cfg.TodayTokens)
	specialTokens := normalizeAll(cfg.SpecialTokens)
	empty := strings.TrimSpace(cfg.EmptyResponse)

	return Rule{
		Source:  SourceToday,
		Trigger: strings.Join(todayTokens, "|") + " + " + strings.Join(specialTokens, "|"),
		When: func(lower string) bool {
			return containsAny(lower, todayTokens) && containsAny(lower, specialTokens)
		},
		Respond: func(ctx context.Context, now time.Time) (string, bool) {
			if registry == nil {
				return empty, empty != ""
			}
			date := now.Format(events.DateLayout)
			list, err := registry.OnDate(ctx, date)
			if err != nil {
				logger.Warn("event lookup failed", "date", date, "err", err)
				return "", false
			}
			if len(list) == 0 {
				return empty, empty != ""
			}
			return events.FormatDay(list), true
		},
	}
}

func fixed(text string) func(context.Context, time.Time) (string, bool) {
	return func(context.Context, time.Time) (string, bool) { return text, true }
}

func contains(needle string) func(string) bool {
	return func(lower string) bool { return strings.Contains(lower, needle) }
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = normalize(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
