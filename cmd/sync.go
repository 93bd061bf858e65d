package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/gitsync/internal/git"
	"github.com/joescharf/gitsync/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync [path]",
	Short: "Run one sync pass: commit, pull --rebase, push",
	Long: `Run a single sync pass against the repository at path (default ".").

A clean repository is a no-op. Otherwise all changes are staged,
committed with an auto-generated message, rebased onto the remote, and
pushed. Rebase conflicts stop the pass and leave the repository
mid-rebase for 'gitsync resolve'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncRun(argPath(args))
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func syncRun(path string) error {
	gc := git.NewClient()

	root, err := gc.FindRoot(path)
	if err != nil {
		return err
	}

	branch, err := gc.CurrentBranch(root)
	if err == nil && branch != "" {
		ui.VerboseLog("Repository: %s (branch %s)", root, branch)
	}

	if dryRun {
		ui.DryRunMsg("Would sync %s", root)
		return nil
	}

	wf := syncer.NewWorkflow(gc, viper.GetString("commit_prefix"))

	started := time.Now()
	outcome := wf.Run(context.Background(), root)
	recordRun("sync", root, started, outcome)

	switch outcome.Kind {
	case syncer.NoChanges:
		ui.Success("No changes to sync")
		return nil

	case syncer.Synced:
		ui.Info("Committed: %s", outcome.CommitMessage)
		ui.Info("Pushed to remote")
		ui.Success("Sync completed: %s", root)
		return nil

	case syncer.ConflictDetected:
		ui.Error("Rebase conflicts detected in %d file(s):", len(outcome.ConflictedPaths))
		for _, p := range outcome.ConflictedPaths {
			ui.Error("  - %s", p)
		}
		ui.Info("Run 'gitsync resolve %s' to resolve conflicts", root)
		return fmt.Errorf("rebase conflicts detected in %s", root)

	default:
		return outcome.Err
	}
}
