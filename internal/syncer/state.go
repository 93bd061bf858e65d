// Package syncer implements the commit, integrate, push workflow and
// the poll loop that drives it.
package syncer

import "github.com/joescharf/gitsync/internal/git"

// RepoState classifies the repository's current integration state.
// It is recomputed on every Inspect call, never cached.
type RepoState int

const (
	StateClean RepoState = iota
	StateDirty
	StateRebasing
	StateMerging
	StateConflicted
)

func (s RepoState) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateRebasing:
		return "rebasing"
	case StateMerging:
		return "merging"
	case StateConflicted:
		return "conflicted"
	default:
		return "unknown"
	}
}

// Inspector classifies repository state using the git backend.
type Inspector struct {
	git git.Client
}

// NewInspector creates an Inspector backed by the given client.
func NewInspector(gc git.Client) *Inspector {
	return &Inspector{git: gc}
}

// Inspect returns the repository state and, when conflicted, the
// unmerged paths. Conflicted is a refinement of rebasing/merging: an
// interrupted integration with a non-empty unmerged set.
func (i *Inspector) Inspect(root string) (RepoState, []string, error) {
	rebasing := i.git.IsRebasing(root)
	merging := i.git.IsMerging(root)

	if rebasing || merging {
		paths, err := i.git.ConflictedFiles(root)
		if err != nil {
			return StateClean, nil, err
		}
		if len(paths) > 0 {
			return StateConflicted, paths, nil
		}
		if rebasing {
			return StateRebasing, nil, nil
		}
		return StateMerging, nil, nil
	}

	dirty, err := i.git.IsDirty(root)
	if err != nil {
		return StateClean, nil, err
	}
	if dirty {
		return StateDirty, nil, nil
	}
	return StateClean, nil, nil
}
