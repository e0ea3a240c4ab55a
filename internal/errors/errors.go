// Package errors provides centralized error definitions and classification
// for the sprint runner. It defines the failure taxonomy the runner records
// on timelines: provider errors (isolated to one candidate), judge errors
// (retry-or-fail the phase), deadline errors (judged like an all-failed set),
// persistence errors (fatal to the attempt), and cancellation.
//
// Creating errors:
//
//	err := errors.NewProviderError("openai", candID, "call failed", cause)
//	err := errors.NewJudgeError(errors.JudgeKindNoViableCandidate, "all candidates failed", nil)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrNoViableCandidate) { ... }
//	var pe *errors.PersistenceError
//	if errors.As(err, &pe) { ... }
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions so callers can import only this
// package for error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sprint-related sentinel errors
var (
	// ErrSprintNotFound indicates that a sprint could not be found.
	ErrSprintNotFound = New("sprint not found")
	// ErrSprintNotPlanned indicates a start on a sprint that already ran.
	ErrSprintNotPlanned = New("sprint is not in planned state")
	// ErrSprintActive indicates an operation that requires a settled sprint.
	ErrSprintActive = New("sprint is currently active")
	// ErrSprintTerminal indicates an operation on a completed or failed sprint.
	ErrSprintTerminal = New("sprint already reached a terminal status")
	// ErrEmptyPhaseList indicates a sprint with no phases.
	ErrEmptyPhaseList = New("sprint has no phases")
)

// Execution-related sentinel errors
var (
	// ErrNoViableCandidate indicates that no candidate finished successfully.
	ErrNoViableCandidate = New("no viable candidate")
	// ErrPhaseDeadline indicates that a phase exceeded its allotted time.
	ErrPhaseDeadline = New("phase deadline exceeded")
	// ErrCanceled indicates a user-initiated cooperative cancellation.
	ErrCanceled = New("sprint canceled")
	// ErrProviderNotFound indicates an unknown provider type in configuration.
	ErrProviderNotFound = New("unknown provider")
)

// Persistence-related sentinel errors
var (
	// ErrCheckpointNotFound indicates that no checkpoint exists for a sprint.
	ErrCheckpointNotFound = New("checkpoint not found")
	// ErrArtifactNotFound indicates that a named artifact does not exist.
	ErrArtifactNotFound = New("artifact not found")
)

// JudgeKind classifies judge failures.
type JudgeKind string

const (
	// JudgeKindNoViableCandidate - every candidate in the set failed.
	JudgeKindNoViableCandidate JudgeKind = "no-viable-candidate"
	// JudgeKindCallFailed - the judge call itself failed.
	JudgeKindCallFailed JudgeKind = "call-failed"
	// JudgeKindBadDecision - the judge returned an unusable decision.
	JudgeKindBadDecision JudgeKind = "bad-decision"
)

// ProviderError wraps a failure of a single candidate's provider call.
// It is isolated to that candidate and never aborts siblings.
type ProviderError struct {
	Provider    string
	CandidateID string
	Message     string
	Cause       error
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider, candidateID, message string, cause error) *ProviderError {
	return &ProviderError{
		Provider:    provider,
		CandidateID: candidateID,
		Message:     message,
		Cause:       cause,
	}
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Timeout reports whether the provider call failed because the phase
// deadline elapsed.
func (e *ProviderError) Timeout() bool { return Is(e.Cause, ErrPhaseDeadline) }

// JudgeError wraps a failed arbitration: either no viable candidate existed
// or the judge call itself failed. It triggers the phase retry-or-fail path.
type JudgeError struct {
	Kind    JudgeKind
	Message string
	Cause   error
}

// NewJudgeError creates a JudgeError.
func NewJudgeError(kind JudgeKind, message string, cause error) *JudgeError {
	return &JudgeError{Kind: kind, Message: message, Cause: cause}
}

func (e *JudgeError) Error() string {
	msg := fmt.Sprintf("judge: %s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *JudgeError) Unwrap() error { return e.Cause }

// Is lets errors.Is match a no-viable-candidate judge error against the
// ErrNoViableCandidate sentinel.
func (e *JudgeError) Is(target error) bool {
	return target == ErrNoViableCandidate && e.Kind == JudgeKindNoViableCandidate
}

// PersistenceError wraps a failed checkpoint, artifact, or event write.
// The runner must not proceed as if state were durably recorded, so this is
// fatal to the phase attempt and is never retried.
type PersistenceError struct {
	Op    string // "checkpoint", "artifact", "event"
	Cause error
}

// NewPersistenceError creates a PersistenceError.
func NewPersistenceError(op string, cause error) *PersistenceError {
	return &PersistenceError{Op: op, Cause: cause}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s write failed: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// IsRetryable reports whether the phase attempt that produced err may be
// retried. Judge errors (including the deadline-as-judge-error path) are
// retryable; persistence errors and cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrCanceled) {
		return false
	}
	var pe *PersistenceError
	if As(err, &pe) {
		return false
	}
	var je *JudgeError
	return As(err, &je)
}

// FailureKind returns the timeline-facing classification for err:
// "provider", "judge", "persistence", "canceled", or "error".
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrCanceled):
		return "canceled"
	}
	var pe *PersistenceError
	if As(err, &pe) {
		return "persistence"
	}
	var je *JudgeError
	if As(err, &je) {
		return "judge"
	}
	var pre *ProviderError
	if As(err, &pre) {
		return "provider"
	}
	return "error"
}
