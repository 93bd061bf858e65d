package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/gitsync/internal/daemon"
	"github.com/joescharf/gitsync/internal/git"
	"github.com/joescharf/gitsync/internal/syncer"
	"github.com/joescharf/gitsync/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch the repository and sync continuously",
	Long: `Watch the repository at path (default ".") and sync on a timer.

Each tick first checks the debounce gate: if a file changed within the
last interval the tick is skipped, so syncs never race an active editing
session. Quiet ticks pull remote changes and, when local edits exist,
commit and push them. A rebase conflict stops watching and points at
'gitsync resolve'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchRun(argPath(args))
	},
}

func init() {
	watchCmd.Flags().IntP("interval", "i", 30, "Sync interval in seconds")
	_ = viper.BindPFlag("interval", watchCmd.Flags().Lookup("interval"))
	rootCmd.AddCommand(watchCmd)
}

func watchRun(path string) error {
	gc := git.NewClient()

	root, err := gc.FindRoot(path)
	if err != nil {
		return err
	}

	interval := viper.GetInt("interval")
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %d", interval)
	}

	if dryRun {
		ui.DryRunMsg("Would watch %s every %ds", root, interval)
		return nil
	}

	stateDir := viper.GetString("state_dir")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	// One watcher per repository; a stale PID file from a dead process
	// is silently replaced.
	pf := daemon.NewPIDFile(daemon.PathForRepo(stateDir, root))
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("watch already running for %s (pid %d)", root, pid)
	}
	if err := pf.Write(); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	defer func() { _ = pf.Remove() }()

	tracker := watcher.NewChangeTracker(root)
	if err := tracker.Start(); err != nil {
		return fmt.Errorf("start filesystem watcher: %w", err)
	}
	defer tracker.Stop()

	// Shutdown stops issuing ticks; an in-flight git call is allowed to
	// finish rather than being killed mid-commit.
	ctx, stop := signal.NotifyContext(rootCmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.Info("Watching: %s", root)
	ui.Info("Interval: %ds (skips if actively editing)", interval)
	ui.Info("Press Ctrl+C to stop")

	loop := &syncer.PollLoop{
		Git:      gc,
		Tracker:  tracker,
		Workflow: syncer.NewWorkflow(gc, viper.GetString("commit_prefix")),
		Interval: time.Duration(interval) * time.Second,
		Logf: func(format string, a ...any) {
			fmt.Fprintf(ui.Out, format+"\n", a...)
		},
		Record: func(outcome syncer.Outcome) {
			recordRun("watch", root, time.Now(), outcome)
		},
	}

	err = loop.Run(ctx, root)

	var conflict *syncer.ConflictError
	if errors.As(err, &conflict) {
		ui.Error("Rebase conflicts detected in %d file(s):", len(conflict.Paths))
		for _, p := range conflict.Paths {
			ui.Error("  - %s", p)
		}
		ui.Info("Run 'gitsync resolve %s' to resolve conflicts", root)
		ui.Info("Stopping watch mode")
		return err
	}
	if err != nil {
		return err
	}

	ui.Info("Watch stopped")
	return nil
}
