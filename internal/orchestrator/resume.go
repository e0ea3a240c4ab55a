package orchestrator

import (
	"context"
	"time"

	"github.com/okapi-sh/sprintd/internal/errors"
	"github.com/okapi-sh/sprintd/internal/sprint"
	"github.com/okapi-sh/sprintd/internal/timeline"
)

// Resume rebuilds a sprint from its latest checkpoint and drives it to a
// terminal status, blocking like Run. Completed phases are kept as-is; the
// phase that was in flight when the process died is re-run from scratch with
// a fresh candidate set. Event sequence numbers continue after the journal's
// last entry, so the resumed stream stays gap-free.
func (o *Orchestrator) Resume(ctx context.Context, sprintID string) error {
	o.mu.RLock()
	_, inMemory := o.states[sprintID]
	o.mu.RUnlock()
	if inMemory {
		return errors.ErrSprintActive
	}

	cp, err := o.checkpoints.Latest(ctx, sprintID)
	if err != nil {
		if errors.Is(err, errors.ErrCheckpointNotFound) {
			return errors.ErrSprintNotFound
		}
		return err
	}

	snap := cp.State
	if snap.Sprint.Status.Terminal() {
		return errors.ErrSprintTerminal
	}

	sp := snap.Sprint.Clone()
	sp.Status = sprint.StatusActive
	sp.UpdatedAt = time.Now()

	st := &state{sprint: &sp, workspace: snap.Workspace}
	st.committed = make([]sprint.Phase, len(snap.Phases))
	firstPhase := len(snap.Phases)
	for i := range snap.Phases {
		ph := (&snap.Phases[i]).Clone()
		if ph.Status != sprint.PhaseStatusCompleted && i < firstPhase {
			firstPhase = i
		}
		if ph.Status == sprint.PhaseStatusInProgress || ph.Status == sprint.PhaseStatusFailed {
			// Re-run from scratch; stale candidates would otherwise leak
			// into the fresh attempt's record.
			ph = *sprint.NewPhase(ph.Name, ph.Index)
		}
		st.committed[i] = ph
	}
	// Continue sequence numbers after everything already journaled. The
	// checkpoint's AfterEvent is the floor; the journal may have more.
	lastSeq := cp.AfterEvent
	if events, err := timeline.ReadJournal(o.journalPath(sprintID)); err == nil {
		for _, e := range events {
			if e.Seq > lastSeq {
				lastSeq = e.Seq
			}
		}
	}
	o.bus.Restore(sprintID, lastSeq)

	o.mu.Lock()
	o.states[sprintID] = st
	o.mu.Unlock()

	o.logger.WithSprint(sprintID).Info("sprint resumed",
		"checkpoint", cp.Seq, "first_phase", firstPhase, "after_event", lastSeq)
	return o.drive(ctx, st, firstPhase, "resumed")
}
