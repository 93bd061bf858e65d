package store

import (
	"context"
	"time"
)

// SyncRun is one journal entry: a single sync, watch tick, or resolve
// pass and its outcome.
type SyncRun struct {
	ID         string
	RepoPath   string
	Command    string // "sync", "watch", or "resolve"
	Outcome    string // "synced", "no-changes", "conflict", "failed"
	Detail     string // commit message, conflicted paths, or error text
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store defines the persistence interface for the sync journal.
type Store interface {
	RecordRun(ctx context.Context, run *SyncRun) error
	ListRuns(ctx context.Context, repoPath string, limit int) ([]*SyncRun, error)
	LastRun(ctx context.Context, repoPath string) (*SyncRun, error)

	Migrate(ctx context.Context) error
	Close() error
}
