// Package sprint defines the core records of a sprint run: the sprint itself,
// its ordered phases, the candidates produced within a phase, the judge's
// decision, and the checkpoint snapshots that make a run resumable and
// auditable. Records are owned by the orchestrator/runner pairing for their
// sprint; everything else reads copies.
package sprint

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okapi-sh/sprintd/internal/errors"
)

// Status represents the lifecycle state of a sprint.
type Status string

const (
	// StatusPlanned - the sprint has been created but not started.
	StatusPlanned Status = "planned"
	// StatusActive - the sprint is being driven through its phases.
	StatusActive Status = "active"
	// StatusCompleted - every phase completed.
	StatusCompleted Status = "completed"
	// StatusFailed - a phase failed, a write failed, or the run was canceled.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PhaseStatus represents the lifecycle state of a single phase.
type PhaseStatus string

const (
	PhaseStatusPending    PhaseStatus = "pending"
	PhaseStatusInProgress PhaseStatus = "in_progress"
	PhaseStatusCompleted  PhaseStatus = "completed"
	PhaseStatusFailed     PhaseStatus = "failed"
	PhaseStatusSkipped    PhaseStatus = "skipped"
)

// Terminal reports whether the phase status is a final state.
func (s PhaseStatus) Terminal() bool {
	return s == PhaseStatusCompleted || s == PhaseStatusFailed || s == PhaseStatusSkipped
}

// CandidateStatus represents the lifecycle state of one candidate execution.
type CandidateStatus string

const (
	CandidateStatusPending   CandidateStatus = "pending"
	CandidateStatusRunning   CandidateStatus = "running"
	CandidateStatusCompleted CandidateStatus = "completed"
	CandidateStatusFailed    CandidateStatus = "failed"
)

// FailureReasonCanceled is recorded on sprints that were cooperatively
// canceled, to keep user-initiated aborts distinguishable from phase failures.
const FailureReasonCanceled = "canceled"

// Sprint is one end-to-end run of a phase sequence for a single task.
type Sprint struct {
	ID            string    `json:"id"`
	Status        Status    `json:"status"`
	PhaseNames    []string  `json:"phase_names"`
	CurrentPhase  int       `json:"current_phase"`
	Checkpoint    uint64    `json:"checkpoint"` // sequence of the latest checkpoint
	Input         string    `json:"input"`      // initial input payload, opaque to the core
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// New creates a planned sprint over the given ordered phase list.
// The phase list must be non-empty and free of duplicate names.
func New(phases []string, input string) (*Sprint, error) {
	if len(phases) == 0 {
		return nil, errors.ErrEmptyPhaseList
	}
	seen := make(map[string]bool, len(phases))
	for _, name := range phases {
		if name == "" {
			return nil, fmt.Errorf("phase name must not be empty")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate phase name: %s", name)
		}
		seen[name] = true
	}

	now := time.Now()
	return &Sprint{
		ID:         uuid.NewString(),
		Status:     StatusPlanned,
		PhaseNames: append([]string{}, phases...),
		Input:      input,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (s *Sprint) Clone() Sprint {
	out := *s
	out.PhaseNames = append([]string{}, s.PhaseNames...)
	return out
}

// Metrics holds token and cost accounting for one provider call.
type Metrics struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Candidate is one provider's attempt at producing output for a phase.
// Candidates for a phase attempt are created together before any runs, and
// are independent: one candidate's failure never blocks its siblings.
type Candidate struct {
	ID          string          `json:"id"`
	Provider    string          `json:"provider"`
	Model       string          `json:"model"`
	Status      CandidateStatus `json:"status"`
	Output      string          `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	Metrics     *Metrics        `json:"metrics,omitempty"`
	TraceID     string          `json:"trace_id,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewCandidate creates a pending candidate for the given provider/model pair.
func NewCandidate(providerName, model string) Candidate {
	return Candidate{
		ID:       uuid.NewString(),
		Provider: providerName,
		Model:    model,
		Status:   CandidateStatusPending,
	}
}

// Viable reports whether the candidate finished successfully and is
// eligible to be selected by the judge.
func (c Candidate) Viable() bool {
	return c.Status == CandidateStatusCompleted
}

// JudgeDecision records the arbitration outcome for one phase attempt.
// WinnerID is empty only on the failure path, which never produces a
// decision record; a stored decision always references a viable candidate.
type JudgeDecision struct {
	WinnerID  string    `json:"winner_id"`
	Score     int       `json:"score"` // 1-10
	Rationale string    `json:"rationale"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// Phase is one stage of a sprint's fixed ordered sequence.
// A phase record is created when the orchestrator reaches it and is immutable
// once terminal, except for the attempt count on retry.
type Phase struct {
	Name             string         `json:"name"`
	Index            int            `json:"index"`
	Status           PhaseStatus    `json:"status"`
	Attempt          int            `json:"attempt"`
	Input            string         `json:"input,omitempty"`  // opaque to the core
	Output           string         `json:"output,omitempty"` // winning candidate output
	Candidates       []Candidate    `json:"candidates,omitempty"`
	Decision         *JudgeDecision `json:"decision,omitempty"`
	CheckpointBefore uint64         `json:"checkpoint_before,omitempty"`
	CheckpointAfter  uint64         `json:"checkpoint_after,omitempty"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	Duration         time.Duration  `json:"duration,omitempty"`
	FailureDetail    string         `json:"failure_detail,omitempty"`
}

// NewPhase creates a pending phase at the given position in the sprint order.
func NewPhase(name string, index int) *Phase {
	return &Phase{
		Name:   name,
		Index:  index,
		Status: PhaseStatusPending,
	}
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (p *Phase) Clone() Phase {
	out := *p
	out.Candidates = append([]Candidate{}, p.Candidates...)
	for i := range out.Candidates {
		if m := out.Candidates[i].Metrics; m != nil {
			mc := *m
			out.Candidates[i].Metrics = &mc
		}
	}
	if p.Decision != nil {
		d := *p.Decision
		out.Decision = &d
	}
	return out
}

// Winner returns the winning candidate recorded by the phase's decision,
// or false if the phase has no decision.
func (p *Phase) Winner() (Candidate, bool) {
	if p.Decision == nil {
		return Candidate{}, false
	}
	for _, c := range p.Candidates {
		if c.ID == p.Decision.WinnerID {
			return c, true
		}
	}
	return Candidate{}, false
}

// Snapshot is the opaque state captured by a checkpoint: the sprint record
// plus every phase reached so far, and a workspace reference.
type Snapshot struct {
	Sprint    Sprint  `json:"sprint"`
	Phases    []Phase `json:"phases"`
	Workspace string  `json:"workspace,omitempty"`
}

// Checkpoint is a durable, append-only snapshot of sprint state.
// Sequence numbers are sprint-scoped and strictly increasing; the store
// assigns them on append. AfterEvent records the timeline sequence that had
// been published when the checkpoint was written, so auditors can order
// checkpoints relative to the event stream.
type Checkpoint struct {
	Seq        uint64    `json:"seq"`
	Label      string    `json:"label,omitempty"`
	State      Snapshot  `json:"state"`
	AfterEvent uint64    `json:"after_event"`
	CreatedAt  time.Time `json:"created_at"`
}
