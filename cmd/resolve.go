package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/gitsync/internal/git"
	"github.com/joescharf/gitsync/internal/llm"
	"github.com/joescharf/gitsync/internal/resolver"
	"github.com/joescharf/gitsync/internal/syncer"
)

var resolveModel string

var resolveCmd = &cobra.Command{
	Use:   "resolve [path]",
	Short: "Resolve rebase conflicts with Claude",
	Long: `Resolve the rebase conflicts in the repository at path (default ".").

Each conflicted file is sent to Claude together with its conflict
markers; the resolved content is written back and staged. When every
file resolves, the rebase is continued and the result pushed. A file
that fails to resolve is reported and left conflicted; the rebase is
never continued while conflicts remain.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveRun(argPath(args))
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveModel, "model", "m", "", "Claude model to use (default from config)")
	rootCmd.AddCommand(resolveCmd)
}

func resolveRun(path string) error {
	gc := git.NewClient()

	root, err := gc.FindRoot(path)
	if err != nil {
		return err
	}

	if !gc.IsRebasing(root) && !gc.IsMerging(root) {
		return fmt.Errorf("no rebase or merge in progress in %s (run 'gitsync sync' first)", root)
	}

	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		return fmt.Errorf("anthropic API key not configured: set ANTHROPIC_API_KEY or anthropic.api_key in the config file")
	}

	model := resolveModel
	if model == "" {
		model = viper.GetString("anthropic.model")
	}

	if dryRun {
		paths, _ := gc.ConflictedFiles(root)
		ui.DryRunMsg("Would resolve %d conflicted file(s) in %s with %s", len(paths), root, model)
		return nil
	}

	ui.Info("Resolving conflicts with Claude (%s)...", model)

	ctx := context.Background()
	wf := resolver.NewWorkflow(gc, llm.NewClient(apiKey, model))

	started := time.Now()
	result, err := wf.ResolveAll(ctx, root)
	if err != nil {
		return err
	}

	if len(result.Failed) > 0 {
		recordRun("resolve", root, started, syncer.Outcome{
			Kind: syncer.Failed,
			Err:  fmt.Errorf("failed to resolve: %s", strings.Join(result.Failed, ", ")),
		})
		ui.Error("Failed to resolve %d file(s):", len(result.Failed))
		for _, p := range result.Failed {
			ui.Error("  - %s", p)
		}
		return fmt.Errorf("resolution incomplete: %d file(s) still conflicted", len(result.Failed))
	}

	if result.Resolved == 0 {
		ui.Info("No conflicts found")
		return nil
	}

	ui.Success("Resolved %d file(s)", result.Resolved)

	ui.Info("Continuing rebase...")
	if err := wf.ContinueIntegration(ctx, root); err != nil {
		var still *resolver.StillConflictedError
		if errors.As(err, &still) {
			ui.Error("Still conflicted after resolution:")
			for _, p := range still.Paths {
				ui.Error("  - %s", p)
			}
		}
		return err
	}

	ui.Info("Pushing to remote...")
	if err := gc.Push(ctx, root); err != nil {
		return fmt.Errorf("push: %w", err)
	}

	recordRun("resolve", root, started, syncer.Outcome{
		Kind:          syncer.Synced,
		CommitMessage: fmt.Sprintf("resolved %d conflicted file(s)", result.Resolved),
	})
	ui.Success("Conflicts resolved: %s", root)
	return nil
}
