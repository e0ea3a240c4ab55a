// Package runner executes a single sprint phase: fan a candidate set out
// across providers, collect the results, have the judge pick a winner, and
// record the whole attempt on the timeline and in checkpoints. Retries
// happen here; a retried attempt discards the previous candidate set
// entirely and starts fresh.
package runner

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/okapi-sh/sprintd/internal/checkpoint"
	"github.com/okapi-sh/sprintd/internal/config"
	"github.com/okapi-sh/sprintd/internal/errors"
	"github.com/okapi-sh/sprintd/internal/executor"
	"github.com/okapi-sh/sprintd/internal/judge"
	"github.com/okapi-sh/sprintd/internal/logging"
	"github.com/okapi-sh/sprintd/internal/provider"
	"github.com/okapi-sh/sprintd/internal/retry"
	"github.com/okapi-sh/sprintd/internal/sprint"
	"github.com/okapi-sh/sprintd/internal/timeline"
)

// Snapshotter produces the durable view of the sprint that checkpoints
// capture. The orchestrator owns sprint state; the runner only asks for a
// consistent copy at checkpoint time.
type Snapshotter interface {
	Snapshot() sprint.Snapshot
}

// Runner drives phases through their attempt loop.
type Runner struct {
	bus         *timeline.Bus
	checkpoints checkpoint.Store
	exec        *executor.Executor
	judge       judge.Judge
	providers   []provider.Runner
	retries     *retry.Manager
	logger      *logging.Logger
	cfg         config.SprintConfig
}

func New(bus *timeline.Bus, store checkpoint.Store, j judge.Judge, providers []provider.Runner, cfg config.SprintConfig, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Runner{
		bus:         bus,
		checkpoints: store,
		exec:        executor.New(bus, logger),
		judge:       j,
		providers:   providers,
		retries:     retry.NewManager(),
		logger:      logger,
		cfg:         cfg,
	}
}

// RunPhase runs one phase to a terminal status, mutating it in place.
//
// Returns nil when the phase completed with a winner. A non-nil return means
// the phase failed: the attempt budget is spent, persistence broke, or the
// sprint was canceled. Cancellation is cooperative and honored only at
// attempt boundaries: an attempt already in flight never has its provider
// calls interrupted; it finishes its fan-in and judgement normally, and the
// cancel takes effect before the next attempt would start. phase.failed is
// published exactly once, on the terminal transition; retried attempts are
// visible through their phase.started events.
func (r *Runner) RunPhase(ctx context.Context, sprintID string, phase *sprint.Phase, snap Snapshotter) error {
	log := r.logger.WithSprint(sprintID).WithPhase(phase.Name)
	r.retries.GetOrCreateState(sprintID, phase.Name, r.cfg.MaxAttempts)

	// Attempts run detached from the cancel signal; only the phase deadline
	// bounds provider calls.
	work := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			r.failPhase(sprintID, phase, sprint.FailureReasonCanceled)
			return errors.ErrCanceled
		}

		phase.Attempt++
		err := r.runAttempt(work, sprintID, phase, snap, log)
		if err == nil {
			r.retries.RecordAttempt(sprintID, phase.Name, true, nil)
			return nil
		}

		// Persistence failures and cancellation bypass the retry budget.
		r.retries.RecordAttempt(sprintID, phase.Name, false, err)
		if r.retries.ShouldRetry(sprintID, phase.Name, err) {
			log.Warn("phase attempt failed, retrying with fresh candidates",
				"attempt", phase.Attempt, "error", err)
			continue
		}

		r.failPhase(sprintID, phase, err.Error())
		log.Error("phase failed", "attempt", phase.Attempt, "error", err)
		return err
	}
}

// runAttempt performs one complete attempt: checkpoint, fan-out, fan-in,
// judge, checkpoint. It never partially records candidates; the set is
// created in full before any provider call starts. ctx carries no cancel
// signal; the phase deadline is applied around the provider fan-out only.
func (r *Runner) runAttempt(ctx context.Context, sprintID string, phase *sprint.Phase, snap Snapshotter, log *logging.Logger) error {
	started := time.Now()
	phase.Status = sprint.PhaseStatusInProgress
	if phase.StartedAt == nil {
		phase.StartedAt = &started
	}

	if _, err := r.bus.Publish(sprintID, timeline.Event{
		Type:    timeline.TypePhaseStarted,
		Phase:   phase.Name,
		Attempt: phase.Attempt,
	}); err != nil {
		return err
	}

	if phase.Attempt == 1 {
		cp, err := r.checkpoints.Append(ctx, sprintID, sprint.Checkpoint{
			Label:      "phase:" + phase.Name + ":start",
			State:      snap.Snapshot(),
			AfterEvent: r.bus.LastSeq(sprintID),
		})
		if err != nil {
			return errors.NewPersistenceError("checkpoint", err)
		}
		phase.CheckpointBefore = cp.Seq
	}

	// The candidate set is fixed before any execution starts.
	cands := make([]sprint.Candidate, len(r.providers))
	for i, p := range r.providers {
		cands[i] = sprint.NewCandidate(p.Name(), p.Model())
	}
	phase.Candidates = cands

	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.PhaseTimeout())
	defer cancel()

	execErrs := make([]error, len(cands))
	input := provider.Input{
		SprintID: sprintID,
		Phase:    phase.Name,
		Attempt:  phase.Attempt,
		Prompt:   phase.Input,
	}
	iter.ForEachIdx(cands, func(i int, c *sprint.Candidate) {
		done, err := r.exec.Execute(attemptCtx, *c, input, r.providers[i])
		*c = done
		execErrs[i] = err
	})
	phase.Candidates = cands

	// Execute only errors on timeline publish failure, which is fatal.
	for _, err := range execErrs {
		if err != nil {
			return err
		}
	}

	if _, err := r.bus.Publish(sprintID, timeline.Event{
		Type:       timeline.TypeJudgeStarted,
		Phase:      phase.Name,
		Attempt:    phase.Attempt,
		Candidates: len(cands),
	}); err != nil {
		return err
	}

	decision, err := r.judge.Select(ctx, phase.Name, phase.Input, cands)
	if err != nil {
		return err
	}

	phase.Decision = decision
	winner, _ := phase.Winner()
	phase.Output = winner.Output

	completed := time.Now()
	phase.Status = sprint.PhaseStatusCompleted
	phase.CompletedAt = &completed
	phase.Duration = completed.Sub(*phase.StartedAt)

	if _, err := r.bus.Publish(sprintID, timeline.Event{
		Type:        timeline.TypeJudgeDecided,
		Phase:       phase.Name,
		Attempt:     phase.Attempt,
		CandidateID: decision.WinnerID,
		Provider:    decision.Provider,
		Message:     decision.Rationale,
	}); err != nil {
		return err
	}
	if _, err := r.bus.Publish(sprintID, timeline.Event{
		Type:        timeline.TypePhaseCompleted,
		Phase:       phase.Name,
		Attempt:     phase.Attempt,
		CandidateID: decision.WinnerID,
		Duration:    phase.Duration,
	}); err != nil {
		return err
	}

	cp, err := r.checkpoints.Append(ctx, sprintID, sprint.Checkpoint{
		Label:      "phase:" + phase.Name + ":end",
		State:      snap.Snapshot(),
		AfterEvent: r.bus.LastSeq(sprintID),
	})
	if err != nil {
		return errors.NewPersistenceError("checkpoint", err)
	}
	phase.CheckpointAfter = cp.Seq

	log.Info("phase completed",
		"attempt", phase.Attempt,
		"winner", decision.WinnerID,
		"provider", winner.Provider,
		"duration", phase.Duration)
	return nil
}

// failPhase marks the phase terminally failed and records a best-effort
// terminal event. Publishing may itself be broken (that is how persistence
// failures end a sprint), so the publish error is ignored here.
func (r *Runner) failPhase(sprintID string, phase *sprint.Phase, detail string) {
	now := time.Now()
	phase.Status = sprint.PhaseStatusFailed
	phase.CompletedAt = &now
	phase.FailureDetail = detail
	if phase.StartedAt != nil {
		phase.Duration = now.Sub(*phase.StartedAt)
	}
	r.bus.Publish(sprintID, timeline.Event{ //nolint:errcheck
		Type:    timeline.TypePhaseFailed,
		Phase:   phase.Name,
		Attempt: phase.Attempt,
		Message: detail,
	})
}
