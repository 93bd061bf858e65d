package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/gitsync/internal/git"
)

// maxShownCommits caps the pulled-commit listing per tick.
const maxShownCommits = 3

// ConflictError halts the poll loop: automatic syncing must not
// continue while the repository is mid-rebase with unmerged paths.
type ConflictError struct {
	Root  string
	Paths []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("rebase conflicts detected in %s (%d file(s): %s)",
		e.Root, len(e.Paths), strings.Join(e.Paths, ", "))
}

// Gate reports how long the watched tree has been quiet.
type Gate interface {
	SecondsSinceLastChange() float64
}

// PollLoop periodically runs the sync workflow against one repository.
// Ticks are fully sequential: a new tick's gate check never happens
// while a workflow run is in flight.
type PollLoop struct {
	Git      git.Client
	Tracker  Gate
	Workflow *Workflow
	Interval time.Duration

	// Logf receives console feedback for each tick. Optional.
	Logf func(format string, a ...any)

	// Record receives the outcome of each tick that ran a workflow.
	// Optional; used for the sync journal.
	Record func(Outcome)
}

func (p *PollLoop) logf(format string, a ...any) {
	if p.Logf != nil {
		p.Logf(format, a...)
	}
}

func (p *PollLoop) record(o Outcome) {
	if p.Record != nil {
		p.Record(o)
	}
}

// Run drives the loop until ctx is cancelled (returns nil) or a
// conflict is detected (returns *ConflictError). Non-conflict sync
// failures are logged and the loop keeps polling; transient network
// failures are expected and the whole point of polling is resilience
// to them.
func (p *PollLoop) Run(ctx context.Context, root string) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	iteration := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		iteration++

		// Debounce gate: skip the tick while edits are still arriving
		// inside the quiet interval. Not an error.
		quiet := p.Tracker.SecondsSinceLastChange()
		if quiet < p.Interval.Seconds() {
			p.logf("[%d] Skipping - still editing (%.1fs ago)", iteration, quiet)
			continue
		}

		p.logf("[%d] Checking...", iteration)

		if err := p.tick(ctx, root); err != nil {
			if conflict, ok := err.(*ConflictError); ok {
				return conflict
			}
			p.logf("  Sync failed: %v", err)
			p.logf("  Continuing to watch...")
		}
	}
}

// tick runs one pass: integrate remote changes first, then commit and
// push local ones if any exist.
func (p *PollLoop) tick(ctx context.Context, root string) error {
	dirty, err := p.Git.IsDirty(root)
	if err != nil {
		return fmt.Errorf("check status: %w", err)
	}

	if !dirty {
		summary, outcome := p.integrateOnly(ctx, root)
		if outcome.Kind == ConflictDetected {
			p.record(outcome)
			return &ConflictError{Root: root, Paths: outcome.ConflictedPaths}
		}
		if outcome.Kind == Failed {
			return outcome.Err
		}
		if outcome.Kind == Synced {
			p.reportPulled(summary)
			p.record(outcome)
		} else {
			p.logf("  No local changes")
		}
		return nil
	}

	p.reportLocalChanges(root)

	outcome := p.Workflow.Run(ctx, root)
	p.record(outcome)

	switch outcome.Kind {
	case ConflictDetected:
		return &ConflictError{Root: root, Paths: outcome.ConflictedPaths}
	case Failed:
		return outcome.Err
	case Synced:
		p.logf("  Committed: %s", outcome.CommitMessage)
		p.logf("  Pushed to remote")
	}
	return nil
}

func (p *PollLoop) integrateOnly(ctx context.Context, root string) (PullSummary, Outcome) {
	summary, outcome := p.Workflow.IntegrateRemote(ctx, root)
	if outcome.Kind == NoChanges {
		p.logf("  No new commits from remote")
	}
	return summary, outcome
}

func (p *PollLoop) reportPulled(summary PullSummary) {
	p.logf("  Pulled %d commit(s) from remote:", len(summary.Commits))
	for i, line := range summary.Commits {
		if i >= maxShownCommits {
			p.logf("    ... and %d more", len(summary.Commits)-maxShownCommits)
			break
		}
		p.logf("    %s", line)
	}
}

func (p *PollLoop) reportLocalChanges(root string) {
	lines, err := p.Git.StatusShort(root)
	if err != nil || len(lines) == 0 {
		return
	}
	p.logf("  Local changes detected (%d file(s)):", len(lines))
	const maxShown = 5
	for i, line := range lines {
		if i >= maxShown {
			p.logf("    ... and %d more", len(lines)-maxShown)
			break
		}
		p.logf("    %s", line)
	}
}
