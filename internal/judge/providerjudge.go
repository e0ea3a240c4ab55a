package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/okapi-sh/sprintd/internal/errors"
	"github.com/okapi-sh/sprintd/internal/provider"
	"github.com/okapi-sh/sprintd/internal/sprint"
)

// ProviderJudge asks a provider to arbitrate. The prompt presents each viable
// candidate's output and instructs the model to answer with JSON wrapped in
// <decision></decision> tags.
type ProviderJudge struct {
	runner provider.Runner
}

func NewProviderJudge(runner provider.Runner) *ProviderJudge {
	return &ProviderJudge{runner: runner}
}

func (p *ProviderJudge) Name() string { return "provider:" + p.runner.Name() }

// decision is the wire shape the judge model must produce.
type decision struct {
	WinnerIndex int    `json:"winner_index"`
	Score       int    `json:"score"`
	Reasoning   string `json:"reasoning"`
}

const judgePromptTemplate = `You are judging %d independent solutions to the same task.

## Task
%s

%s
## Instructions

Pick the single best solution. Respond with JSON wrapped in <decision></decision> tags:

<decision>
{"winner_index": <0-based index>, "score": <1-10>, "reasoning": "<one paragraph>"}
</decision>
`

func (p *ProviderJudge) Select(ctx context.Context, phase, task string, candidates []sprint.Candidate) (*sprint.JudgeDecision, error) {
	pool, err := viable(candidates)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for i, c := range pool {
		fmt.Fprintf(&sb, "## Solution %d (from %s)\n%s\n\n", i, c.Provider, c.Output)
	}
	prompt := fmt.Sprintf(judgePromptTemplate, len(pool), task, sb.String())

	out, err := p.runner.Run(ctx, provider.Input{Phase: phase, Prompt: prompt})
	if err != nil {
		return nil, errors.NewJudgeError(errors.JudgeKindCallFailed, "judge provider call failed", err)
	}

	d, err := parseDecision(out.Text)
	if err != nil {
		return nil, errors.NewJudgeError(errors.JudgeKindBadDecision, "unparseable judge output", err)
	}
	if d.WinnerIndex < 0 || d.WinnerIndex >= len(pool) {
		return nil, errors.NewJudgeError(errors.JudgeKindBadDecision,
			fmt.Sprintf("winner index %d out of range [0,%d)", d.WinnerIndex, len(pool)), nil)
	}

	score := d.Score
	if score < 1 || score > 10 {
		score = 5
	}
	winner := pool[d.WinnerIndex]
	return &sprint.JudgeDecision{
		WinnerID:  winner.ID,
		Score:     score,
		Rationale: d.Reasoning,
		Provider:  p.Name(),
		Model:     p.runner.Model(),
		DecidedAt: time.Now(),
	}, nil
}

var decisionRe = regexp.MustCompile(`(?s)<decision>\s*(.*?)\s*</decision>`)

// parseDecision extracts the JSON decision from the judge model's output.
// Models wrap their answer in prose, so only the tagged block is parsed.
func parseDecision(output string) (*decision, error) {
	matches := decisionRe.FindStringSubmatch(output)
	if len(matches) < 2 {
		return nil, fmt.Errorf("no decision found in output (expected <decision>JSON</decision>)")
	}

	var d decision
	if err := json.Unmarshal([]byte(strings.TrimSpace(matches[1])), &d); err != nil {
		return nil, fmt.Errorf("parsing decision JSON: %w", err)
	}
	return &d, nil
}
