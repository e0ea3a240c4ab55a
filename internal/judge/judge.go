// Package judge arbitrates between the candidates of a phase attempt. A
// judge sees the full candidate set, including failures, and must either
// select one viable winner or return a JudgeError that sends the phase down
// the retry-or-fail path.
package judge

import (
	"context"
	"fmt"

	"github.com/okapi-sh/sprintd/internal/config"
	"github.com/okapi-sh/sprintd/internal/errors"
	"github.com/okapi-sh/sprintd/internal/provider"
	"github.com/okapi-sh/sprintd/internal/sprint"
)

// Judge selects the winning candidate for a phase attempt.
//
// Select must never pick a non-viable candidate. When no viable candidate
// exists it returns a JudgeError of kind no-viable-candidate; any other
// failure returns kind call-failed or bad-decision. All three kinds are
// retryable at the phase level.
type Judge interface {
	Name() string
	Select(ctx context.Context, phase string, task string, candidates []sprint.Candidate) (*sprint.JudgeDecision, error)
}

// New builds a Judge from configuration. The zero value selects the
// heuristic judge, which needs no backend.
func New(cfg config.JudgeConfig) (Judge, error) {
	switch cfg.Type {
	case "", "heuristic":
		return NewHeuristic(), nil
	case "provider":
		runner, err := provider.New(cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("building judge provider: %w", err)
		}
		return NewProviderJudge(runner), nil
	default:
		return nil, fmt.Errorf("unknown judge type %q", cfg.Type)
	}
}

// viable filters the candidate set down to judgeable entries. Every judge
// implementation goes through this so the no-viable-candidate contract is
// enforced uniformly.
func viable(candidates []sprint.Candidate) ([]sprint.Candidate, error) {
	var out []sprint.Candidate
	for _, c := range candidates {
		if c.Viable() {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, errors.NewJudgeError(errors.JudgeKindNoViableCandidate,
			fmt.Sprintf("all %d candidates failed", len(candidates)), nil)
	}
	return out, nil
}
