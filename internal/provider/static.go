package provider

import (
	"context"
	"time"

	"github.com/okapi-sh/sprintd/internal/config"
	"github.com/okapi-sh/sprintd/internal/sprint"
)

// Static returns a fixed output. It is the default provider type and exists
// for dry runs and for exercising the phase machinery without a backend.
type Static struct {
	ProviderName string
	ModelName    string
	Output       string

	// Delay and Err are not reachable from configuration; tests use them to
	// simulate slow and failing backends.
	Delay   time.Duration
	Err     error
	Metrics sprint.Metrics
}

func NewStatic(cfg config.ProviderConfig) *Static {
	return &Static{
		ProviderName: cfg.Name,
		ModelName:    cfg.Model,
		Output:       cfg.Output,
	}
}

func (s *Static) Name() string  { return s.ProviderName }
func (s *Static) Model() string { return s.ModelName }

func (s *Static) Run(ctx context.Context, in Input) (*Output, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Output{Text: s.Output, Metrics: s.Metrics}, nil
}
