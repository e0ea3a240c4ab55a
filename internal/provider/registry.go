package provider

import (
	"fmt"
	"strings"

	"github.com/okapi-sh/sprintd/internal/config"
	"github.com/okapi-sh/sprintd/internal/errors"
)

// New builds a Runner from a single provider config entry.
func New(cfg config.ProviderConfig) (Runner, error) {
	switch strings.ToLower(cfg.Type) {
	case "http":
		return NewHTTP(cfg)
	case "command":
		return NewCommand(cfg)
	case "static", "":
		return NewStatic(cfg), nil
	default:
		return nil, fmt.Errorf("provider %s: unknown type %q", cfg.Name, cfg.Type)
	}
}

// NewSet builds one Runner per configured provider, preserving config order.
// The phase runner launches one candidate per entry.
func NewSet(cfgs []config.ProviderConfig) ([]Runner, error) {
	if len(cfgs) == 0 {
		return nil, errors.ErrProviderNotFound
	}
	runners := make([]Runner, 0, len(cfgs))
	for _, c := range cfgs {
		r, err := New(c)
		if err != nil {
			return nil, err
		}
		runners = append(runners, r)
	}
	return runners, nil
}
