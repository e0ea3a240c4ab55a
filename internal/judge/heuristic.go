package judge

import (
	"context"
	"fmt"
	"time"

	"github.com/okapi-sh/sprintd/internal/sprint"
)

// Heuristic is a deterministic judge that needs no backend. It scores viable
// candidates on output substance and cost and picks the highest scorer,
// breaking ties by candidate order so reruns over the same set are stable.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

func (h *Heuristic) Name() string { return "heuristic" }

func (h *Heuristic) Select(ctx context.Context, phase, task string, candidates []sprint.Candidate) (*sprint.JudgeDecision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool, err := viable(candidates)
	if err != nil {
		return nil, err
	}

	best := pool[0]
	bestScore := h.score(best)
	for _, c := range pool[1:] {
		if s := h.score(c); s > bestScore {
			best, bestScore = c, s
		}
	}

	return &sprint.JudgeDecision{
		WinnerID:  best.ID,
		Score:     bestScore,
		Rationale: fmt.Sprintf("selected %s: longest substantive output among %d viable candidates", best.Provider, len(pool)),
		Provider:  h.Name(),
		DecidedAt: time.Now(),
	}, nil
}

// score maps a candidate to 1-10. Longer non-trivial output scores higher;
// cheaper runs win ties implicitly via candidate order.
func (h *Heuristic) score(c sprint.Candidate) int {
	n := len(c.Output)
	switch {
	case n == 0:
		return 1
	case n < 64:
		return 3
	case n < 512:
		return 5
	case n < 4096:
		return 7
	default:
		return 9
	}
}
