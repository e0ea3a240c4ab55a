package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okapi-sh/sprintd/internal/artifact"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts <sprint-id>",
	Short: "List or print a sprint's artifacts",
	Long: `List the artifacts a sprint produced: each completed phase stores its
winning output and the judge's decision. With --name, the named artifact's
content is written to stdout instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runArtifacts,
}

var artifactName string

func init() {
	artifactsCmd.Flags().StringVarP(&artifactName, "name", "n", "", "print this artifact's content to stdout")
	rootCmd.AddCommand(artifactsCmd)
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sprintID := args[0]

	store, err := artifact.NewFileStore(cfg.Paths.DataDir)
	if err != nil {
		return err
	}

	if artifactName != "" {
		a, err := store.Get(context.Background(), sprintID, artifactName)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(a.Data)
		return err
	}

	arts, err := store.List(context.Background(), sprintID)
	if err != nil {
		return err
	}
	if len(arts) == 0 {
		fmt.Printf("no artifacts for sprint %s\n", sprintID)
		return nil
	}
	for _, a := range arts {
		fmt.Printf("%-30s %-18s %6d bytes  %s\n",
			a.Name, a.Type, len(a.Data), a.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
