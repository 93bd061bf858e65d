package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyResolution is returned when the oracle's response is blank
// after stripping any fenced-block wrapper.
var ErrEmptyResolution = errors.New("oracle returned empty resolution")

// StillConflictedError is returned when continuing the rebase fails
// and unmerged paths remain, meaning resolution was incomplete.
type StillConflictedError struct {
	Paths []string
}

func (e *StillConflictedError) Error() string {
	return fmt.Sprintf("rebase failed - still have conflicts in: %s", strings.Join(e.Paths, ", "))
}

// Oracle resolves conflicted file content. It receives the repository-
// relative path, a file-type hint, and the full raw content including
// markers; the surrounding context (headers, frontmatter) matters.
type Oracle interface {
	Resolve(ctx context.Context, relPath, fileType, content string) (string, error)
}

// Backend is the slice of git operations resolution needs.
type Backend interface {
	ConflictedFiles(root string) ([]string, error)
	StageFile(root, relPath string) error
	ContinueRebase(ctx context.Context, root string) error
}

// Result reports one resolution pass: how many files were resolved and
// staged, and which failed, in discovery order.
type Result struct {
	Resolved int
	Failed   []string
}

// Workflow resolves all conflicted files in a repository.
type Workflow struct {
	git    Backend
	oracle Oracle
}

// NewWorkflow creates a resolution workflow.
func NewWorkflow(git Backend, oracle Oracle) *Workflow {
	return &Workflow{git: git, oracle: oracle}
}

// ResolveAll resolves every conflicted file in the repository, in the
// order the backend reports them. One bad file never aborts the rest:
// its path is recorded as failed and the batch continues. Files are
// processed strictly one at a time to keep oracle load and ordering
// predictable.
func (w *Workflow) ResolveAll(ctx context.Context, root string) (Result, error) {
	conflicted, err := w.git.ConflictedFiles(root)
	if err != nil {
		return Result{}, fmt.Errorf("list conflicted files: %w", err)
	}

	var result Result
	for _, relPath := range conflicted {
		if err := w.resolveFile(ctx, root, relPath); err != nil {
			result.Failed = append(result.Failed, relPath)
			continue
		}
		result.Resolved++
	}
	return result, nil
}

// resolveFile reads one conflicted file, resolves it through the
// oracle, writes the result back, and stages it.
func (w *Workflow) resolveFile(ctx context.Context, root, relPath string) error {
	fullPath := filepath.Join(root, relPath)

	raw, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", relPath, err)
	}
	content := string(raw)

	resolved, err := w.resolveContent(ctx, relPath, content)
	if err != nil {
		return err
	}

	if err := os.WriteFile(fullPath, []byte(resolved), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}

	if err := w.git.StageFile(root, relPath); err != nil {
		return fmt.Errorf("stage %s: %w", relPath, err)
	}
	return nil
}

// resolveContent returns the resolved full-file text. Content with no
// conflict regions is returned unchanged.
func (w *Workflow) resolveContent(ctx context.Context, relPath, content string) (string, error) {
	if len(ParseRegions(content)) == 0 {
		return content, nil
	}

	fileType := filepath.Ext(relPath)
	if fileType == "" {
		fileType = "unknown"
	}

	response, err := w.oracle.Resolve(ctx, relPath, fileType, content)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", relPath, err)
	}

	resolved := stripFence(strings.TrimSpace(response))
	if strings.TrimSpace(resolved) == "" {
		return "", fmt.Errorf("%s: %w", relPath, ErrEmptyResolution)
	}
	return resolved, nil
}

// stripFence removes an enclosing markdown code fence, if present. The
// oracle is told not to wrap its output, but models do it anyway.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(lines[len(lines)-1], "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// ContinueIntegration resumes the interrupted rebase after all files
// were resolved. If the backend fails and unmerged paths remain, the
// remaining paths are surfaced so the caller can retry resolution.
func (w *Workflow) ContinueIntegration(ctx context.Context, root string) error {
	if err := w.git.ContinueRebase(ctx, root); err != nil {
		if paths, listErr := w.git.ConflictedFiles(root); listErr == nil && len(paths) > 0 {
			return &StillConflictedError{Paths: paths}
		}
		return fmt.Errorf("continue rebase: %w", err)
	}
	return nil
}
