package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okapi-sh/sprintd/internal/checkpoint"
	"github.com/okapi-sh/sprintd/internal/errors"
)

var statusCmd = &cobra.Command{
	Use:   "status <sprint-id>",
	Short: "Show a sprint's phase progress",
	Long: `Display the state of a sprint from its latest checkpoint on disk.
Works for finished sprints and for sprints owned by another process.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sprintID := args[0]

	store, err := checkpoint.NewFileStore(cfg.Paths.DataDir)
	if err != nil {
		return err
	}
	cp, err := store.Latest(context.Background(), sprintID)
	if err != nil {
		if errors.Is(err, errors.ErrCheckpointNotFound) {
			return fmt.Errorf("no checkpoints for sprint %s (has it started?)", sprintID)
		}
		return err
	}

	snap := cp.State
	fmt.Printf("Sprint: %s\n", snap.Sprint.ID)
	fmt.Printf("Status: %s", snap.Sprint.Status)
	if snap.Sprint.FailureReason != "" {
		fmt.Printf(" (%s)", snap.Sprint.FailureReason)
	}
	fmt.Println()
	fmt.Printf("Checkpoint: %d (%s, after event %d)\n", cp.Seq, cp.Label, cp.AfterEvent)
	fmt.Printf("Updated: %s\n\n", snap.Sprint.UpdatedAt.Format("2006-01-02 15:04:05"))

	for _, ph := range snap.Phases {
		fmt.Printf("[%d] %s (%s)\n", ph.Index+1, ph.Name, ph.Status)
		if ph.Attempt > 1 {
			fmt.Printf("    Attempts: %d\n", ph.Attempt)
		}
		for _, c := range ph.Candidates {
			marker := " "
			if ph.Decision != nil && ph.Decision.WinnerID == c.ID {
				marker = "*"
			}
			fmt.Printf("  %s %s (%s)\n", marker, c.Provider, c.Status)
		}
		if ph.Decision != nil && ph.Decision.Rationale != "" {
			fmt.Printf("    Decision: %s\n", ph.Decision.Rationale)
		}
		if ph.FailureDetail != "" {
			fmt.Printf("    Failure: %s\n", ph.FailureDetail)
		}
		fmt.Println()
	}
	return nil
}
