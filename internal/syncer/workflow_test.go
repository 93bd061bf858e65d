package syncer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/gitsync/internal/git"
)

// fakeGit is a scriptable git.Client that records every mutating call.
type fakeGit struct {
	root       string
	dirty      bool
	rebasing   bool
	merging    bool
	conflicted []string
	status     []string
	heads      []string // consumed by successive Head calls
	commits    []string

	pullResult git.PullResult

	findRootErr error
	dirtyErr    error
	stageErr    error
	commitErr   error
	pullErr     error
	pushErr     error

	calls []string
}

func newFakeGit() *fakeGit {
	return &fakeGit{root: "/repo"}
}

func (f *fakeGit) call(name string) { f.calls = append(f.calls, name) }

func (f *fakeGit) FindRoot(path string) (string, error) {
	if f.findRootErr != nil {
		return "", f.findRootErr
	}
	return f.root, nil
}

func (f *fakeGit) CurrentBranch(root string) (string, error) { return "main", nil }

func (f *fakeGit) IsDirty(root string) (bool, error) {
	if f.dirtyErr != nil {
		return false, f.dirtyErr
	}
	return f.dirty, nil
}

func (f *fakeGit) StatusShort(root string) ([]string, error) { return f.status, nil }

func (f *fakeGit) StageAll(root string) error {
	f.call("StageAll")
	return f.stageErr
}

func (f *fakeGit) StageFile(root, relPath string) error {
	f.call("StageFile:" + relPath)
	return nil
}

func (f *fakeGit) Commit(root, message string) error {
	f.call("Commit:" + message)
	return f.commitErr
}

func (f *fakeGit) Head(root string) (string, error) {
	if len(f.heads) == 0 {
		return "head0", nil
	}
	h := f.heads[0]
	f.heads = f.heads[1:]
	return h, nil
}

func (f *fakeGit) CommitsBetween(root, from, to string) ([]string, error) {
	return f.commits, nil
}

func (f *fakeGit) PullRebase(ctx context.Context, root string) (git.PullResult, error) {
	f.call("PullRebase")
	if f.pullErr != nil {
		return git.PullResult{}, f.pullErr
	}
	return f.pullResult, nil
}

func (f *fakeGit) Push(ctx context.Context, root string) error {
	f.call("Push")
	return f.pushErr
}

func (f *fakeGit) IsRebasing(root string) bool { return f.rebasing }
func (f *fakeGit) IsMerging(root string) bool  { return f.merging }

func (f *fakeGit) ConflictedFiles(root string) ([]string, error) { return f.conflicted, nil }

func (f *fakeGit) ContinueRebase(ctx context.Context, root string) error {
	f.call("ContinueRebase")
	return nil
}

func (f *fakeGit) AbortRebase(ctx context.Context, root string) error {
	f.call("AbortRebase")
	return nil
}

var _ git.Client = (*fakeGit)(nil)

func TestCommitMessage(t *testing.T) {
	msg := CommitMessage("auto")

	// "auto: " followed by an RFC 3339 timestamp with offset.
	re := regexp.MustCompile(`^auto: \d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(Z|[+-]\d{2}:\d{2})$`)
	assert.Regexp(t, re, msg)

	ts := msg[len("auto: "):]
	parsed, err := time.Parse(time.RFC3339, ts)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed, 5*time.Second)
}

func TestRunCleanTree(t *testing.T) {
	fg := newFakeGit()
	wf := NewWorkflow(fg, "auto")

	outcome := wf.Run(context.Background(), "/repo")

	assert.Equal(t, NoChanges, outcome.Kind)
	assert.Empty(t, fg.calls, "clean tree must trigger no mutations")
}

func TestRunDirtySyncs(t *testing.T) {
	fg := newFakeGit()
	fg.dirty = true
	wf := NewWorkflow(fg, "auto")

	outcome := wf.Run(context.Background(), "/repo")

	require.Equal(t, Synced, outcome.Kind)
	assert.Contains(t, outcome.CommitMessage, "auto: ")

	require.Len(t, fg.calls, 4)
	assert.Equal(t, "StageAll", fg.calls[0])
	assert.Contains(t, fg.calls[1], "Commit:auto: ")
	assert.Equal(t, "PullRebase", fg.calls[2])
	assert.Equal(t, "Push", fg.calls[3])
}

func TestRunConflict(t *testing.T) {
	fg := newFakeGit()
	fg.dirty = true
	fg.pullResult = git.PullResult{Conflicted: true, ConflictedPaths: []string{"notes.md", "doc.txt"}}
	wf := NewWorkflow(fg, "auto")

	outcome := wf.Run(context.Background(), "/repo")

	assert.Equal(t, ConflictDetected, outcome.Kind)
	assert.Equal(t, []string{"notes.md", "doc.txt"}, outcome.ConflictedPaths)
	assert.NotContains(t, fg.calls, "Push", "conflicted run must not push")
	assert.NotContains(t, fg.calls, "AbortRebase", "rebase must stay in place for resolution")
}

func TestRunPushFailure(t *testing.T) {
	fg := newFakeGit()
	fg.dirty = true
	fg.pushErr = errors.New("remote unreachable")
	wf := NewWorkflow(fg, "auto")

	outcome := wf.Run(context.Background(), "/repo")

	require.Equal(t, Failed, outcome.Kind)
	assert.ErrorContains(t, outcome.Err, "push")
	assert.NotEmpty(t, outcome.CommitMessage, "commit happened before the push failed")
}

func TestRunNotARepo(t *testing.T) {
	fg := newFakeGit()
	fg.findRootErr = fmt.Errorf("%w: /nowhere", git.ErrNotRepository)
	wf := NewWorkflow(fg, "auto")

	outcome := wf.Run(context.Background(), "/nowhere")

	assert.Equal(t, Failed, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, git.ErrNotRepository)
	assert.Empty(t, fg.calls)
}

func TestIntegrateRemoteNoNewCommits(t *testing.T) {
	fg := newFakeGit()
	fg.heads = []string{"abc", "abc"}
	wf := NewWorkflow(fg, "auto")

	_, outcome := wf.IntegrateRemote(context.Background(), "/repo")

	assert.Equal(t, NoChanges, outcome.Kind)
	assert.Equal(t, []string{"PullRebase"}, fg.calls)
}

func TestIntegrateRemotePullsCommits(t *testing.T) {
	fg := newFakeGit()
	fg.heads = []string{"abc", "def"}
	fg.commits = []string{"def second", "cde first"}
	wf := NewWorkflow(fg, "auto")

	summary, outcome := wf.IntegrateRemote(context.Background(), "/repo")

	assert.Equal(t, Synced, outcome.Kind)
	assert.Equal(t, []string{"def second", "cde first"}, summary.Commits)
}

func TestIntegrateRemoteConflict(t *testing.T) {
	fg := newFakeGit()
	fg.pullResult = git.PullResult{Conflicted: true, ConflictedPaths: []string{"a.txt"}}
	wf := NewWorkflow(fg, "auto")

	_, outcome := wf.IntegrateRemote(context.Background(), "/repo")

	assert.Equal(t, ConflictDetected, outcome.Kind)
	assert.Equal(t, []string{"a.txt"}, outcome.ConflictedPaths)
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "no-changes", NoChanges.String())
	assert.Equal(t, "synced", Synced.String())
	assert.Equal(t, "conflict", ConflictDetected.String())
	assert.Equal(t, "failed", Failed.String())
}
