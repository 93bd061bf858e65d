package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/gitsync/internal/git"
	"github.com/joescharf/gitsync/internal/output"
	"github.com/joescharf/gitsync/internal/syncer"
)

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show sync status for a repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun(argPath(args))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun(path string) error {
	gc := git.NewClient()

	root, err := gc.FindRoot(path)
	if err != nil {
		return err
	}

	ui.Info("Repository: %s", root)

	branch, err := gc.CurrentBranch(root)
	if err != nil {
		ui.Warning("Unable to determine branch: %v", err)
	} else if branch == "" {
		ui.Warning("Detached HEAD")
	} else {
		ui.Info("Branch: %s", branch)
	}

	state, paths, err := syncer.NewInspector(gc).Inspect(root)
	if err != nil {
		ui.Warning("Unable to inspect state: %v", err)
	} else {
		ui.Info("State: %s", output.StateColor(state.String()))
		if state == syncer.StateConflicted {
			for _, p := range paths {
				ui.Info("  conflicted: %s", p)
			}
			ui.Info("Run 'gitsync resolve %s' to resolve conflicts", root)
		}
	}

	// Last journal entry, if any. The journal is optional context here.
	s, err := getStore()
	if err != nil {
		ui.VerboseLog("journal unavailable: %v", err)
		return nil
	}
	last, err := s.LastRun(rootCmd.Context(), root)
	if err != nil || last == nil {
		return nil
	}
	ui.Info("Last run: %s %s (%s)", last.StartedAt.Local().Format("2006-01-02 15:04:05"),
		output.OutcomeColor(last.Outcome), last.Command)
	if last.Detail != "" {
		ui.VerboseLog("  %s", last.Detail)
	}
	return nil
}
