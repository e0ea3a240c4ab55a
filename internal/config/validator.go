package config

import (
	"fmt"
	"strings"
)

// providerTypes are the recognized provider implementations.
var providerTypes = map[string]bool{
	"http":    true,
	"command": true,
	"static":  true,
}

// Validate checks a Config for problems that would surface mid-sprint, so a
// bad setup fails at startup with an actionable message instead.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Sprint.MaxAttempts < 1 {
		problems = append(problems, "sprint.max_attempts must be at least 1")
	}

	if len(cfg.Providers) == 0 {
		problems = append(problems, "at least one provider must be configured")
	}
	seen := make(map[string]bool)
	for i, p := range cfg.Providers {
		label := p.Name
		if label == "" {
			label = fmt.Sprintf("providers[%d]", i)
			problems = append(problems, fmt.Sprintf("%s: name is required", label))
		}
		if seen[strings.ToLower(p.Name)] && p.Name != "" {
			problems = append(problems, fmt.Sprintf("%s: duplicate provider name", label))
		}
		seen[strings.ToLower(p.Name)] = true
		problems = append(problems, validateProvider(label, p)...)
	}

	switch cfg.Judge.Type {
	case "", "heuristic":
	case "provider":
		problems = append(problems, validateProvider("judge.provider", cfg.Judge.Provider)...)
	default:
		problems = append(problems, fmt.Sprintf("judge.type %q is not recognized (use \"heuristic\" or \"provider\")", cfg.Judge.Type))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateProvider(label string, p ProviderConfig) []string {
	var problems []string

	typ := strings.ToLower(p.Type)
	if typ == "" {
		typ = "static"
	}
	if !providerTypes[typ] {
		problems = append(problems, fmt.Sprintf("%s: type %q is not recognized (use http, command, or static)", label, p.Type))
		return problems
	}

	switch typ {
	case "http":
		if p.Endpoint == "" {
			problems = append(problems, fmt.Sprintf("%s: endpoint is required for http providers", label))
		}
	case "command":
		if p.Command == "" {
			problems = append(problems, fmt.Sprintf("%s: command is required for command providers", label))
		}
	}
	return problems
}
