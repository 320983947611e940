package canned

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules is the data behind the matcher, kept apart from the dispatch code so
// tables can be edited without touching it.
type Rules struct {
	Criticism CriticismRules `yaml:"criticism"`
	Today     TodayRules     `yaml:"today"`
	FAQ       []FAQEntry     `yaml:"faq"`
}

// CriticismRules maps any negative phrase or pattern to one rebuttal.
type CriticismRules struct {
	Response string   `yaml:"response"`
	Phrases  []string `yaml:"phrases"`
	Patterns []string `yaml:"patterns"`
}

// TodayRules configures the "what's special today" intent.
type TodayRules struct {
	TodayTokens   []string `yaml:"today_tokens"`
	SpecialTokens []string `yaml:"special_tokens"`
	EmptyResponse string   `yaml:"empty_response"`
}

type FAQEntry struct {
	Trigger  string `yaml:"trigger"`
	Response string `yaml:"response"`
}

// DefaultRules returns the built-in rule tables.
func DefaultRules() Rules {
	r, err := ParseRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded rules invalid: %v", err))
	}
	return r
}

// LoadRules reads rules from path, or the built-in tables when path is empty.
func LoadRules(path string) (Rules, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parse rules yaml: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, fmt.Errorf("invalid rules: %w", err)
	}
	return r, nil
}

func (r Rules) Validate() error {
	var errs []error
	if len(r.Criticism.Phrases)+len(r.Criticism.Patterns) > 0 && strings.TrimSpace(r.Criticism.Response) == "" {
		errs = append(errs, errors.New("criticism.response is required when phrases or patterns are set"))
	}
	for _, p := range r.Criticism.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("criticism pattern %q: %w", p, err))
		}
	}
	if len(r.Today.TodayTokens) > 0 && len(r.Today.SpecialTokens) == 0 {
		errs = append(errs, errors.New("today.special_tokens is required with today_tokens"))
	}
	seen := make(map[string]bool, len(r.FAQ))
	for i, e := range r.FAQ {
		trigger := normalize(e.Trigger)
		switch {
		case trigger == "":
			errs = append(errs, fmt.Errorf("faq[%d]: trigger is required", i))
		case strings.TrimSpace(e.Response) == "":
			errs = append(errs, fmt.Errorf("faq[%d] %q: response is required", i, e.Trigger))
		case seen[trigger]:
			errs = append(errs, fmt.Errorf("faq[%d]: duplicate trigger %q", i, e.Trigger))
		}
		seen[trigger] = true
	}
	return errors.Join(errs...)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
