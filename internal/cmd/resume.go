package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okapi-sh/sprintd/internal/logging"
	"github.com/okapi-sh/sprintd/internal/orchestrator"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <sprint-id>",
	Short: "Resume an interrupted sprint from its latest checkpoint",
	Long: `Resume rebuilds a sprint from the most recent checkpoint on disk and
continues it. Completed phases are kept; the phase that was in flight when
the process died is re-run from scratch with a fresh candidate set.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sprintID := args[0]

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	orch, err := orchestrator.New(cfg, logger)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "canceling sprint...")
		_ = orch.Cancel(sprintID)
	}()

	done := make(chan error, 1)
	go func() { done <- orch.Resume(context.Background(), sprintID) }()

	// The sprint is only subscribable once Resume has rebuilt it, so poll
	// briefly. Replay delivers anything published in the meantime.
	for {
		select {
		case err := <-done:
			return report(orch, sprintID, err)
		default:
		}
		ch, stop, err := orch.Subscribe(sprintID)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		for e := range ch {
			fmt.Println(formatEvent(e))
		}
		stop()
		break
	}

	return report(orch, sprintID, <-done)
}
