package provider

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/okapi-sh/sprintd/internal/config"
)

// Command runs a local executable per candidate. The prompt is written to the
// process's stdin and stdout becomes the candidate output. Useful for CLI
// model frontends and for wiring arbitrary local tooling into a phase.
type Command struct {
	name    string
	model   string
	command string
	args    []string
}

func NewCommand(cfg config.ProviderConfig) (*Command, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("provider %s: command is required", cfg.Name)
	}
	return &Command{
		name:    cfg.Name,
		model:   cfg.Model,
		command: cfg.Command,
		args:    cfg.Args,
	}, nil
}

func (c *Command) Name() string  { return c.name }
func (c *Command) Model() string { return c.model }

// Run executes the command under ctx; cancellation kills the process.
func (c *Command) Run(ctx context.Context, in Input) (*Output, error) {
	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Stdin = strings.NewReader(in.Prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Context errors take precedence so deadline expiry is reported as
		// such rather than as a generic "signal: killed".
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", c.command, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", c.command, err)
	}

	return &Output{Text: stdout.String()}, nil
}
