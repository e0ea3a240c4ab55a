// Package executor runs a single candidate against its provider and records
// the lifecycle on the sprint timeline. The phase runner fans several
// executions out per attempt; each one is fully independent.
package executor

import (
	"context"
	"time"

	"github.com/okapi-sh/sprintd/internal/errors"
	"github.com/okapi-sh/sprintd/internal/logging"
	"github.com/okapi-sh/sprintd/internal/provider"
	"github.com/okapi-sh/sprintd/internal/sprint"
	"github.com/okapi-sh/sprintd/internal/timeline"
)

// Executor runs candidates and publishes their start/finish events.
type Executor struct {
	bus    *timeline.Bus
	logger *logging.Logger
}

func New(bus *timeline.Bus, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Executor{bus: bus, logger: logger}
}

// Execute runs one candidate to completion and returns it in its final state.
//
// A provider failure is recorded on the candidate itself (status failed,
// error populated) and does not produce a non-nil error return; the error
// return is reserved for timeline publish failures, which are persistence
// problems and must abort the phase rather than burn a retry.
func (e *Executor) Execute(ctx context.Context, cand sprint.Candidate, in provider.Input, runner provider.Runner) (sprint.Candidate, error) {
	log := e.logger.WithCandidate(cand.ID).With("provider", cand.Provider, "phase", in.Phase)

	started := time.Now()
	cand.Status = sprint.CandidateStatusRunning
	cand.StartedAt = &started

	if _, err := e.bus.Publish(in.SprintID, timeline.Event{
		Type:        timeline.TypeCandidateStarted,
		Phase:       in.Phase,
		Attempt:     in.Attempt,
		CandidateID: cand.ID,
		Provider:    cand.Provider,
		Model:       cand.Model,
	}); err != nil {
		return cand, err
	}

	out, runErr := runner.Run(ctx, in)

	completed := time.Now()
	cand.CompletedAt = &completed

	if runErr != nil {
		perr := classify(cand, runErr)
		cand.Status = sprint.CandidateStatusFailed
		cand.Error = perr.Error()
		log.Warn("candidate failed", "error", runErr, "duration", completed.Sub(started))
	} else {
		cand.Status = sprint.CandidateStatusCompleted
		cand.Output = out.Text
		cand.TraceID = out.TraceID
		if out.Metrics != (sprint.Metrics{}) {
			m := out.Metrics
			cand.Metrics = &m
		}
		log.Info("candidate generated", "duration", completed.Sub(started))
	}

	ev := timeline.Event{
		Type:        timeline.TypeCandidateGenerated,
		Phase:       in.Phase,
		Attempt:     in.Attempt,
		CandidateID: cand.ID,
		Provider:    cand.Provider,
		Model:       cand.Model,
		Success:     timeline.Bool(cand.Viable()),
		Output:      cand.Output,
		TraceID:     cand.TraceID,
		Metrics:     cand.Metrics,
		Duration:    completed.Sub(started),
		Message:     cand.Error,
	}
	if _, err := e.bus.Publish(in.SprintID, ev); err != nil {
		return cand, err
	}
	return cand, nil
}

// classify wraps a raw provider failure, flagging deadline expiry so the
// failure reads as a timeout rather than a generic error.
func classify(cand sprint.Candidate, err error) *errors.ProviderError {
	cause := err
	msg := "call failed"
	if errors.Is(err, context.DeadlineExceeded) {
		cause = errors.Join(errors.ErrPhaseDeadline, err)
		msg = "timed out"
	}
	return errors.NewProviderError(cand.Provider, cand.ID, msg, cause)
}
