package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okapi-sh/sprintd/internal/logging"
	"github.com/okapi-sh/sprintd/internal/orchestrator"
	"github.com/okapi-sh/sprintd/internal/sprint"
	"github.com/okapi-sh/sprintd/internal/timeline"
	"github.com/okapi-sh/sprintd/internal/tui"
	"github.com/okapi-sh/sprintd/internal/util"
)

var runCmd = &cobra.Command{
	Use:   "run <sprint-file>",
	Short: "Run a sprint to completion",
	Long: `Run a sprint defined in a YAML file through all of its phases.

The sprint file lists the ordered phases and the initial input:

  phases:
    - design
    - build
    - verify
  input: |
    Implement rate limiting for the public API.

The command blocks until the sprint reaches a terminal status. Ctrl-C
requests cooperative cancellation: the in-flight candidate set is recorded
and the sprint fails with reason "canceled".`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var runWatch bool

func init() {
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "render live progress in a TUI instead of plain event lines")
	rootCmd.AddCommand(runCmd)
}

// sprintFile is the YAML shape of a sprint definition.
type sprintFile struct {
	Phases []string `yaml:"phases"`
	Input  string   `yaml:"input"`
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading sprint file: %w", err)
	}
	var def sprintFile
	if err := yaml.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("parsing sprint file: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	orch, err := orchestrator.New(cfg, logger)
	if err != nil {
		return err
	}

	sp, err := orch.Create(def.Phases, def.Input)
	if err != nil {
		return err
	}
	fmt.Printf("Sprint %s: %d phases\n", sp.ID, len(sp.PhaseNames))

	done, err := orch.Start(context.Background(), sp.ID)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "canceling sprint...")
		_ = orch.Cancel(sp.ID)
	}()

	if runWatch {
		if err := tui.Watch(orch, sp.ID); err != nil {
			return err
		}
	} else {
		printEvents(orch, sp.ID)
	}

	runErr := <-done
	return report(orch, sp.ID, runErr)
}

// printEvents streams the sprint's timeline to stdout until it ends.
func printEvents(orch *orchestrator.Orchestrator, sprintID string) {
	ch, stop, err := orch.Subscribe(sprintID)
	if err != nil {
		return
	}
	defer stop()
	for e := range ch {
		fmt.Println(formatEvent(e))
	}
}

func formatEvent(e timeline.Event) string {
	line := fmt.Sprintf("%4d  %s  %-20s", e.Seq, e.Timestamp.Format("15:04:05"), e.Type)
	if e.Phase != "" {
		line += "  phase=" + e.Phase
	}
	if e.Attempt > 1 {
		line += fmt.Sprintf("  attempt=%d", e.Attempt)
	}
	if e.Provider != "" {
		line += "  provider=" + e.Provider
	}
	if e.Success != nil {
		line += fmt.Sprintf("  success=%t", *e.Success)
	}
	if e.Message != "" {
		line += "  " + util.Summarize(e.Message, 100)
	}
	return line
}

// report prints the terminal summary and maps the run error to the exit.
func report(orch *orchestrator.Orchestrator, sprintID string, runErr error) error {
	snap, err := orch.Status(sprintID)
	if err != nil {
		if runErr != nil {
			return runErr
		}
		return err
	}

	fmt.Printf("\nSprint %s: %s", sprintID, snap.Sprint.Status)
	if snap.Sprint.FailureReason != "" {
		fmt.Printf(" (%s)", snap.Sprint.FailureReason)
	}
	fmt.Println()
	for _, ph := range snap.Phases {
		fmt.Printf("  [%d] %-12s %-12s", ph.Index+1, ph.Name, ph.Status)
		if w, ok := ph.Winner(); ok {
			fmt.Printf("  winner=%s", w.Provider)
		}
		if ph.Status == sprint.PhaseStatusFailed && ph.FailureDetail != "" {
			fmt.Printf("  %s", ph.FailureDetail)
		}
		fmt.Println()
	}
	return runErr
}
