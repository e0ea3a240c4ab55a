package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/okapi-sh/sprintd/internal/timeline"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <sprint-id>",
	Short: "Print a sprint's event timeline",
	Long: `Print every event recorded for a sprint, in sequence order, from the
on-disk journal. The journal survives the run process, so this works for
finished and crashed sprints alike.`,
	Args: cobra.ExactArgs(1),
	RunE: runTimeline,
}

var timelinePhase string

func init() {
	timelineCmd.Flags().StringVar(&timelinePhase, "phase", "", "only show events for this phase")
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sprintID := args[0]

	path := filepath.Join(cfg.Paths.DataDir, sprintID, "events.jsonl")
	events, err := timeline.ReadJournal(path)
	if err != nil {
		return fmt.Errorf("no timeline for sprint %s: %w", sprintID, err)
	}

	for _, e := range events {
		if timelinePhase != "" && e.Phase != timelinePhase {
			continue
		}
		fmt.Println(formatEvent(e))
	}
	return nil
}
