package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/gitsync/internal/output"
	"github.com/joescharf/gitsync/internal/store"
	"github.com/joescharf/gitsync/internal/syncer"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "gitsync",
	Short: "Automatic git sync with AI conflict resolution",
	Long: `gitsync keeps a local git repository continuously synchronized with
its remote: it watches for edits, auto-commits them, pulls with rebase,
pushes, and resolves rebase conflicts with Claude when they happen.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/gitsync/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "gitsync")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GITSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "gitsync")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "gitsync.db"))
	viper.SetDefault("interval", 30)
	viper.SetDefault("commit_prefix", "auto")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")

	// The bare ANTHROPIC_API_KEY is honored too, so an already-exported
	// key works without a gitsync-specific variable.
	_ = viper.BindEnv("anthropic.api_key", "GITSYNC_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The journal store is initialized lazily, only when commands
	// actually need it, so config/version run without a db.
}

// getStore returns the shared journal store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// recordRun appends a run to the sync journal. Best-effort: a journal
// failure must never break syncing itself.
func recordRun(command, root string, started time.Time, outcome syncer.Outcome) {
	s, err := getStore()
	if err != nil {
		ui.VerboseLog("journal unavailable: %v", err)
		return
	}

	detail := ""
	switch outcome.Kind {
	case syncer.Synced:
		detail = outcome.CommitMessage
	case syncer.ConflictDetected:
		detail = strings.Join(outcome.ConflictedPaths, ", ")
	case syncer.Failed:
		if outcome.Err != nil {
			detail = outcome.Err.Error()
		}
	}

	run := &store.SyncRun{
		RepoPath:   root,
		Command:    command,
		Outcome:    outcome.Kind.String(),
		Detail:     detail,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := s.RecordRun(rootCmd.Context(), run); err != nil {
		ui.VerboseLog("journal write failed: %v", err)
	}
}

// argPath returns the positional repository path argument, defaulting
// to the current directory.
func argPath(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return "."
}
