// Package provider defines the candidate execution backends a sprint phase
// fans out to. Each Runner takes a phase prompt and produces a single
// candidate output; the runner package races several of them and lets the
// judge pick a winner.
package provider

import (
	"context"

	"github.com/okapi-sh/sprintd/internal/sprint"
)

// Input carries everything a provider needs to produce one candidate.
type Input struct {
	SprintID string
	Phase    string
	Attempt  int
	Prompt   string
}

// Output is a single candidate result from a provider.
type Output struct {
	Text    string
	Metrics sprint.Metrics
	// TraceID is the provider's own identifier for the call, when it has one.
	TraceID string
}

// Runner executes a single candidate attempt against one backend.
//
// Run must honor ctx cancellation and deadline: the phase runner imposes a
// shared deadline across all candidates of a phase. A failed Run affects only
// its own candidate slot, never its siblings.
type Runner interface {
	Name() string
	Model() string
	Run(ctx context.Context, in Input) (*Output, error)
}
