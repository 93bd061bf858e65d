package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/gitsync/internal/git"
)

// stubGate returns a fixed quiet duration.
type stubGate struct {
	mu    sync.Mutex
	quiet float64
}

func (g *stubGate) SecondsSinceLastChange() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.quiet
}

func (g *stubGate) set(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quiet = v
}

func newTestLoop(fg *fakeGit, gate Gate) *PollLoop {
	return &PollLoop{
		Git:      fg,
		Tracker:  gate,
		Workflow: NewWorkflow(fg, "auto"),
		Interval: 10 * time.Millisecond,
	}
}

func TestPollLoopStopsOnCancel(t *testing.T) {
	fg := newFakeGit()
	loop := newTestLoop(fg, &stubGate{quiet: 1e9})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := loop.Run(ctx, "/repo")
	assert.NoError(t, err)
}

func TestPollLoopGateSkipsWhileEditing(t *testing.T) {
	fg := newFakeGit()
	fg.dirty = true

	// Quiet time always below the interval: every tick is skipped and
	// the workflow never runs.
	loop := newTestLoop(fg, &stubGate{quiet: 0.001})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := loop.Run(ctx, "/repo")
	require.NoError(t, err)
	assert.Empty(t, fg.calls, "gated ticks must not touch the repository")
}

func TestPollLoopSyncsWhenQuiet(t *testing.T) {
	fg := newFakeGit()
	fg.dirty = true
	loop := newTestLoop(fg, &stubGate{quiet: 1e9})

	var recorded []Outcome
	loop.Record = func(o Outcome) { recorded = append(recorded, o) }

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Millisecond)
	defer cancel()

	err := loop.Run(ctx, "/repo")
	require.NoError(t, err)

	assert.Contains(t, fg.calls, "Push")
	require.NotEmpty(t, recorded)
	assert.Equal(t, Synced, recorded[0].Kind)
}

func TestPollLoopHaltsOnConflict(t *testing.T) {
	fg := newFakeGit()
	fg.dirty = true
	fg.pullResult = git.PullResult{Conflicted: true, ConflictedPaths: []string{"notes.md"}}
	loop := newTestLoop(fg, &stubGate{quiet: 1e9})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := loop.Run(ctx, "/repo")
	require.Error(t, err)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "/repo", conflict.Root)
	assert.Equal(t, []string{"notes.md"}, conflict.Paths)
	assert.NotContains(t, fg.calls, "Push")
}

func TestPollLoopContinuesAfterFailure(t *testing.T) {
	fg := newFakeGit()
	fg.dirty = true
	fg.pushErr = errors.New("remote unreachable")
	loop := newTestLoop(fg, &stubGate{quiet: 1e9})

	var logs []string
	loop.Logf = func(format string, a ...any) { logs = append(logs, format) }

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	// Push keeps failing but the loop must run to cancellation anyway.
	err := loop.Run(ctx, "/repo")
	require.NoError(t, err)

	pushes := 0
	for _, c := range fg.calls {
		if c == "Push" {
			pushes++
		}
	}
	assert.Greater(t, pushes, 1, "failed ticks should retry on later ticks")
	assert.Contains(t, logs, "  Sync failed: %v")
}

func TestPollLoopIntegratesRemoteWhenClean(t *testing.T) {
	fg := newFakeGit()
	fg.heads = []string{"abc", "def", "def", "def", "def", "def", "def", "def"}
	fg.commits = []string{"def remote work"}
	loop := newTestLoop(fg, &stubGate{quiet: 1e9})

	var recorded []Outcome
	loop.Record = func(o Outcome) { recorded = append(recorded, o) }

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Millisecond)
	defer cancel()

	err := loop.Run(ctx, "/repo")
	require.NoError(t, err)

	assert.Contains(t, fg.calls, "PullRebase")
	assert.NotContains(t, fg.calls, "StageAll", "clean tree must not be committed")
	require.NotEmpty(t, recorded)
	assert.Equal(t, Synced, recorded[0].Kind)
}

func TestConflictErrorMessage(t *testing.T) {
	err := &ConflictError{Root: "/repo", Paths: []string{"a.txt", "b.txt"}}
	assert.Contains(t, err.Error(), "/repo")
	assert.Contains(t, err.Error(), "2 file(s)")
	assert.Contains(t, err.Error(), "a.txt, b.txt")
}
