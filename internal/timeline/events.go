// Package timeline provides the per-sprint ordered event log. The bus is the
// single component that assigns sequence numbers: events for one sprint are
// totally ordered, delivered to every subscriber in publish order, and a
// subscriber that joins late receives the full history before any live event,
// with nothing duplicated or skipped across the replay/live boundary.
package timeline

import (
	"time"

	"github.com/okapi-sh/sprintd/internal/sprint"
)

// Type identifies a timeline event. Convention: "category.action".
type Type string

const (
	// TypeWorkflowStatus is emitted on every sprint status transition.
	TypeWorkflowStatus Type = "workflow.status"
	// TypePhaseStarted is emitted when a phase attempt begins.
	TypePhaseStarted Type = "phase.started"
	// TypePhaseCompleted is emitted when a phase completes.
	TypePhaseCompleted Type = "phase.completed"
	// TypePhaseFailed is emitted when a phase exhausts its attempts or hits
	// a non-retryable failure.
	TypePhaseFailed Type = "phase.failed"
	// TypeCandidateStarted is emitted when a candidate execution launches.
	TypeCandidateStarted Type = "candidate.started"
	// TypeCandidateGenerated is emitted when a candidate resolves, in
	// success or failure.
	TypeCandidateGenerated Type = "candidate.generated"
	// TypeJudgeStarted is emitted once all candidates of an attempt reach a
	// terminal status and arbitration begins. Carries the candidate count.
	TypeJudgeStarted Type = "judge.started"
	// TypeJudgeDecided is emitted when the judge selects a winner.
	TypeJudgeDecided Type = "judge.decided"
)

// Event is one immutable record of a state transition. Seq is assigned by
// the bus, is sprint-scoped, and increases by exactly one per event, so
// readers can detect gaps. Fields beyond the first four are type-specific;
// unfilled ones are omitted from the encoded form.
type Event struct {
	Seq       uint64    `json:"seq"`
	SprintID  string    `json:"sprint_id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Phase       string          `json:"phase,omitempty"`
	Attempt     int             `json:"attempt,omitempty"`
	Candidates  int             `json:"candidates,omitempty"`
	CandidateID string          `json:"candidate_id,omitempty"`
	Provider    string          `json:"provider,omitempty"`
	Model       string          `json:"model,omitempty"`
	Success     *bool           `json:"success,omitempty"`
	Output      string          `json:"output,omitempty"`
	TraceID     string          `json:"trace_id,omitempty"`
	Metrics     *sprint.Metrics `json:"metrics,omitempty"`
	Duration    time.Duration   `json:"duration,omitempty"`
	Message     string          `json:"message,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Bool is a convenience for populating Event.Success.
func Bool(v bool) *bool { return &v }
