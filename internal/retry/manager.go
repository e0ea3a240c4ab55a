// Package retry tracks attempt budgets for sprint phases.
//
// A phase gets a fixed number of attempts; the runner consults this package
// after a failed attempt to decide between retrying the whole phase with a
// fresh candidate set and failing the sprint. State is keyed by sprint and
// phase so concurrent sprints never share budgets.
package retry

import (
	"sync"

	"github.com/okapi-sh/sprintd/internal/errors"
)

// PhaseState tracks attempts for one phase of one sprint.
type PhaseState struct {
	SprintID    string   `json:"sprint_id"`
	Phase       string   `json:"phase"`
	Attempts    int      `json:"attempts"`
	MaxAttempts int      `json:"max_attempts"`
	LastError   string   `json:"last_error,omitempty"`
	Errors      []string `json:"errors,omitempty"` // one entry per failed attempt
	Succeeded   bool     `json:"succeeded,omitempty"`
}

// Manager manages attempt state. Safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*PhaseState
}

func NewManager() *Manager {
	return &Manager{states: make(map[string]*PhaseState)}
}

func key(sprintID, phase string) string { return sprintID + "/" + phase }

// GetOrCreateState returns or creates attempt state for a phase.
func (m *Manager) GetOrCreateState(sprintID, phase string, maxAttempts int) *PhaseState {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(sprintID, phase)
	state, exists := m.states[k]
	if !exists {
		state = &PhaseState{
			SprintID:    sprintID,
			Phase:       phase,
			MaxAttempts: maxAttempts,
		}
		m.states[k] = state
	}
	return state
}

// GetState returns the attempt state for a phase, or nil if none exists.
func (m *Manager) GetState(sprintID, phase string) *PhaseState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[key(sprintID, phase)]
}

// ShouldRetry reports whether another attempt is allowed after err.
// Retryable failures (judge errors) consume the budget; persistence errors
// and cancellation are never retried regardless of remaining attempts.
func (m *Manager) ShouldRetry(sprintID, phase string, err error) bool {
	if !errors.IsRetryable(err) {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.states[key(sprintID, phase)]
	if !exists {
		return false
	}
	return state.Attempts < state.MaxAttempts && !state.Succeeded
}

// RecordAttempt records a completed attempt. Success closes the budget.
func (m *Manager) RecordAttempt(sprintID, phase string, success bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.states[key(sprintID, phase)]
	if !exists {
		return
	}

	state.Attempts++
	if success {
		state.Succeeded = true
		return
	}
	if err != nil {
		state.LastError = err.Error()
		state.Errors = append(state.Errors, err.Error())
	}
}

// ExhaustedPhases returns sprint/phase keys that ran out of attempts
// without succeeding.
func (m *Manager) ExhaustedPhases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for k, s := range m.states {
		if !s.Succeeded && s.Attempts >= s.MaxAttempts {
			out = append(out, k)
		}
	}
	return out
}

// Reset clears all state for a sprint. Used when a sprint is rebuilt from a
// checkpoint, where attempt history restarts from the resumed phase.
func (m *Manager) Reset(sprintID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, s := range m.states {
		if s.SprintID == sprintID {
			delete(m.states, k)
		}
	}
}
