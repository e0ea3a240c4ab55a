package orchestrator

import (
	"github.com/okapi-sh/sprintd/internal/sprint"
	"github.com/okapi-sh/sprintd/internal/timeline"
)

// Rebuild folds an event stream into a sprint snapshot. Because every state
// transition is published as exactly one event, replaying a sprint's
// timeline reproduces the same phase outcomes the checkpoints recorded; the
// function exists so auditors and tests can verify that.
//
// The input must be a single sprint's events in sequence order. Fields that
// only live in checkpoints (workspace, checkpoint seqs) are not recovered.
func Rebuild(events []timeline.Event) sprint.Snapshot {
	var snap sprint.Snapshot
	phaseIdx := map[string]int{}

	phaseFor := func(name string) *sprint.Phase {
		if i, ok := phaseIdx[name]; ok {
			return &snap.Phases[i]
		}
		snap.Phases = append(snap.Phases, *sprint.NewPhase(name, len(snap.Phases)))
		phaseIdx[name] = len(snap.Phases) - 1
		snap.Sprint.PhaseNames = append(snap.Sprint.PhaseNames, name)
		return &snap.Phases[len(snap.Phases)-1]
	}

	for _, e := range events {
		if snap.Sprint.ID == "" {
			snap.Sprint.ID = e.SprintID
		}

		switch e.Type {
		case timeline.TypeWorkflowStatus:
			if s, ok := e.Metadata["status"]; ok {
				snap.Sprint.Status = sprint.Status(s)
			}
			if r, ok := e.Metadata["reason"]; ok {
				snap.Sprint.FailureReason = r
			}
			snap.Sprint.UpdatedAt = e.Timestamp

		case timeline.TypePhaseStarted:
			ph := phaseFor(e.Phase)
			ph.Status = sprint.PhaseStatusInProgress
			ph.Attempt = e.Attempt
			if ph.StartedAt == nil {
				ts := e.Timestamp
				ph.StartedAt = &ts
			}
			// A new attempt starts from an empty candidate set.
			ph.Candidates = nil
			ph.Decision = nil
			ph.FailureDetail = ""
			snap.Sprint.CurrentPhase = ph.Index

		case timeline.TypeCandidateStarted:
			ph := phaseFor(e.Phase)
			ts := e.Timestamp
			ph.Candidates = append(ph.Candidates, sprint.Candidate{
				ID:        e.CandidateID,
				Provider:  e.Provider,
				Model:     e.Model,
				Status:    sprint.CandidateStatusRunning,
				StartedAt: &ts,
			})

		case timeline.TypeCandidateGenerated:
			ph := phaseFor(e.Phase)
			for i := range ph.Candidates {
				c := &ph.Candidates[i]
				if c.ID != e.CandidateID {
					continue
				}
				ts := e.Timestamp
				c.CompletedAt = &ts
				c.TraceID = e.TraceID
				c.Metrics = e.Metrics
				if e.Success != nil && *e.Success {
					c.Status = sprint.CandidateStatusCompleted
					c.Output = e.Output
				} else {
					c.Status = sprint.CandidateStatusFailed
					c.Error = e.Message
				}
				break
			}

		case timeline.TypeJudgeDecided:
			ph := phaseFor(e.Phase)
			ph.Decision = &sprint.JudgeDecision{
				WinnerID:  e.CandidateID,
				Rationale: e.Message,
				Provider:  e.Provider,
				DecidedAt: e.Timestamp,
			}

		case timeline.TypePhaseCompleted:
			ph := phaseFor(e.Phase)
			ph.Status = sprint.PhaseStatusCompleted
			ts := e.Timestamp
			ph.CompletedAt = &ts
			ph.Duration = e.Duration
			if w, ok := ph.Winner(); ok {
				ph.Output = w.Output
			}

		case timeline.TypePhaseFailed:
			ph := phaseFor(e.Phase)
			ph.Status = sprint.PhaseStatusFailed
			ph.FailureDetail = e.Message
			ts := e.Timestamp
			ph.CompletedAt = &ts
		}
	}
	return snap
}
