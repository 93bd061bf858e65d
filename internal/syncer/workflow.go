package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/joescharf/gitsync/internal/git"
)

// OutcomeKind is the terminal state of one workflow run.
type OutcomeKind int

const (
	NoChanges OutcomeKind = iota
	Synced
	ConflictDetected
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case NoChanges:
		return "no-changes"
	case Synced:
		return "synced"
	case ConflictDetected:
		return "conflict"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one sync workflow run. Produced fresh each
// run, never persisted by the workflow itself.
type Outcome struct {
	Kind            OutcomeKind
	CommitMessage   string
	ConflictedPaths []string
	Err             error
}

// PullSummary reports what an integrate-only pass brought in from the
// remote.
type PullSummary struct {
	Commits []string // one-line log entries, newest first
}

// Workflow runs the commit, integrate, push sequence against one
// repository. At most one run is in flight per repository at a time;
// the poll loop enforces this by running ticks fully sequentially.
type Workflow struct {
	git    git.Client
	prefix string
}

// NewWorkflow creates a Workflow. prefix is the auto-commit message
// prefix, e.g. "auto".
func NewWorkflow(gc git.Client, prefix string) *Workflow {
	return &Workflow{git: gc, prefix: prefix}
}

// CommitMessage generates the auto-commit message: the prefix followed
// by an RFC 3339 timestamp with the local UTC offset.
func CommitMessage(prefix string) string {
	return fmt.Sprintf("%s: %s", prefix, time.Now().Format(time.RFC3339))
}

// Run executes one sync pass: validate, check dirty, stage and commit,
// integrate, push. A clean tree terminates immediately with NoChanges
// and performs no backend mutations. Stage, commit, and push failures
// are surfaced without retry; the caller retries on the next tick.
func (w *Workflow) Run(ctx context.Context, path string) Outcome {
	root, err := w.git.FindRoot(path)
	if err != nil {
		return Outcome{Kind: Failed, Err: err}
	}

	dirty, err := w.git.IsDirty(root)
	if err != nil {
		return Outcome{Kind: Failed, Err: fmt.Errorf("check status: %w", err)}
	}
	if !dirty {
		return Outcome{Kind: NoChanges}
	}

	if err := w.git.StageAll(root); err != nil {
		return Outcome{Kind: Failed, Err: fmt.Errorf("stage changes: %w", err)}
	}

	msg := CommitMessage(w.prefix)
	if err := w.git.Commit(root, msg); err != nil {
		return Outcome{Kind: Failed, Err: fmt.Errorf("commit: %w", err)}
	}

	res, err := w.git.PullRebase(ctx, root)
	if err != nil {
		return Outcome{Kind: Failed, CommitMessage: msg, Err: fmt.Errorf("pull: %w", err)}
	}
	if res.Conflicted {
		// Leave the rebase in place; resolution needs the conflicted
		// state to survive.
		return Outcome{Kind: ConflictDetected, CommitMessage: msg, ConflictedPaths: res.ConflictedPaths}
	}

	if err := w.git.Push(ctx, root); err != nil {
		return Outcome{Kind: Failed, CommitMessage: msg, Err: fmt.Errorf("push: %w", err)}
	}

	return Outcome{Kind: Synced, CommitMessage: msg}
}

// IntegrateRemote pulls remote changes into a clean tree and reports
// what arrived. Used by the watch loop on quiet ticks with no local
// edits, so remote work still lands. A conflicted pull is reported the
// same way as in Run.
func (w *Workflow) IntegrateRemote(ctx context.Context, root string) (PullSummary, Outcome) {
	before, err := w.git.Head(root)
	if err != nil {
		return PullSummary{}, Outcome{Kind: Failed, Err: fmt.Errorf("read HEAD: %w", err)}
	}

	res, err := w.git.PullRebase(ctx, root)
	if err != nil {
		return PullSummary{}, Outcome{Kind: Failed, Err: fmt.Errorf("pull: %w", err)}
	}
	if res.Conflicted {
		return PullSummary{}, Outcome{Kind: ConflictDetected, ConflictedPaths: res.ConflictedPaths}
	}

	after, err := w.git.Head(root)
	if err != nil {
		return PullSummary{}, Outcome{Kind: Failed, Err: fmt.Errorf("read HEAD: %w", err)}
	}

	if before == after {
		return PullSummary{}, Outcome{Kind: NoChanges}
	}

	commits, err := w.git.CommitsBetween(root, before, after)
	if err != nil {
		// The pull itself succeeded; a log failure only loses the summary.
		return PullSummary{}, Outcome{Kind: Synced}
	}
	return PullSummary{Commits: commits}, Outcome{Kind: Synced}
}
