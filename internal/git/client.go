package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotRepository is returned when no git repository is found at or
// above the requested path.
var ErrNotRepository = errors.New("not a git repository")

// PullResult is the structured outcome of a rebase pull. A conflicted
// pull is not an error: the repository is left mid-rebase and the
// unmerged paths are reported so the caller can drive resolution.
type PullResult struct {
	Conflicted      bool
	ConflictedPaths []string
}

// Client defines the interface for git operations against a single repo.
// All methods take the repository root so the orchestration layer stays
// testable with a fake implementation.
type Client interface {
	FindRoot(path string) (string, error)
	CurrentBranch(root string) (string, error)
	IsDirty(root string) (bool, error)
	StatusShort(root string) ([]string, error)
	StageAll(root string) error
	StageFile(root, relPath string) error
	Commit(root, message string) error
	Head(root string) (string, error)
	CommitsBetween(root, from, to string) ([]string, error)
	PullRebase(ctx context.Context, root string) (PullResult, error)
	Push(ctx context.Context, root string) error
	IsRebasing(root string) bool
	IsMerging(root string) bool
	ConflictedFiles(root string) ([]string, error)
	ContinueRebase(ctx context.Context, root string) error
	AbortRebase(ctx context.Context, root string) error
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitCmd(path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.Command("git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func gitCmdContext(ctx context.Context, path string, env []string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// FindRoot walks ancestor directories upward from path until a .git
// marker is found. Returns ErrNotRepository if the filesystem root is
// reached first.
func (c *RealClient) FindRoot(path string) (string, error) {
	current, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("%w: %s", ErrNotRepository, path)
		}
		current = parent
	}
}

func (c *RealClient) CurrentBranch(root string) (string, error) {
	return gitCmd(root, "branch", "--show-current")
}

func (c *RealClient) IsDirty(root string) (bool, error) {
	out, err := gitCmd(root, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// StatusShort returns the short status lines for the working tree,
// one per changed file. Empty slice means a clean tree.
func (c *RealClient) StatusShort(root string) ([]string, error) {
	out, err := gitCmd(root, "status", "--short")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func (c *RealClient) StageAll(root string) error {
	_, err := gitCmd(root, "add", ".")
	return err
}

func (c *RealClient) StageFile(root, relPath string) error {
	_, err := gitCmd(root, "add", "--", relPath)
	return err
}

func (c *RealClient) Commit(root, message string) error {
	_, err := gitCmd(root, "commit", "-m", message)
	return err
}

func (c *RealClient) Head(root string) (string, error) {
	return gitCmd(root, "rev-parse", "HEAD")
}

// CommitsBetween returns the one-line log entries in from..to order,
// newest first.
func (c *RealClient) CommitsBetween(root, from, to string) ([]string, error) {
	out, err := gitCmd(root, "log", "--oneline", from+".."+to)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// PullRebase fetches the remote and replays local commits on top of it.
// When the rebase stops on conflicts, the result carries the unmerged
// paths and no error is returned; the repository stays mid-rebase so
// resolution can run against it.
func (c *RealClient) PullRebase(ctx context.Context, root string) (PullResult, error) {
	_, err := gitCmdContext(ctx, root, nil, "pull", "--rebase")
	if err == nil {
		return PullResult{}, nil
	}

	// git reports conflicts and ordinary failures through the same exit
	// code; disambiguate by checking the repository state, not the text.
	if c.IsRebasing(root) || c.IsMerging(root) {
		paths, listErr := c.ConflictedFiles(root)
		if listErr == nil && len(paths) > 0 {
			return PullResult{Conflicted: true, ConflictedPaths: paths}, nil
		}
	}

	return PullResult{}, err
}

func (c *RealClient) Push(ctx context.Context, root string) error {
	_, err := gitCmdContext(ctx, root, nil, "push")
	return err
}

// IsRebasing checks the rebase marker directories, no subprocess needed.
func (c *RealClient) IsRebasing(root string) bool {
	for _, marker := range []string{"rebase-merge", "rebase-apply"} {
		if _, err := os.Stat(filepath.Join(root, ".git", marker)); err == nil {
			return true
		}
	}
	return false
}

// IsMerging checks for the MERGE_HEAD marker file.
func (c *RealClient) IsMerging(root string) bool {
	_, err := os.Stat(filepath.Join(root, ".git", "MERGE_HEAD"))
	return err == nil
}

// ConflictedFiles returns the unmerged paths, in git's reported order.
func (c *RealClient) ConflictedFiles(root string) ([]string, error) {
	out, err := gitCmd(root, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ContinueRebase resumes an interrupted rebase. GIT_EDITOR is forced to
// true so git never blocks waiting for a commit message editor.
func (c *RealClient) ContinueRebase(ctx context.Context, root string) error {
	_, err := gitCmdContext(ctx, root, []string{"GIT_EDITOR=true"}, "rebase", "--continue")
	return err
}

func (c *RealClient) AbortRebase(ctx context.Context, root string) error {
	_, err := gitCmdContext(ctx, root, nil, "rebase", "--abort")
	return err
}

func splitLines(out string) []string {
	if out == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
