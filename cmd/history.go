package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/gitsync/internal/git"
	"github.com/joescharf/gitsync/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "Show recent sync runs for a repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRun(argPath(args))
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func historyRun(path string) error {
	gc := git.NewClient()

	root, err := gc.FindRoot(path)
	if err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	runs, err := s.ListRuns(rootCmd.Context(), root, historyLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		ui.Info("No sync runs recorded for %s", root)
		return nil
	}

	table := ui.Table([]string{"When", "Command", "Outcome", "Detail"})
	for _, run := range runs {
		table.Append([]string{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Command,
			output.OutcomeColor(run.Outcome),
			run.Detail,
		})
	}
	return table.Render()
}
