// Package watcher tracks filesystem activity in a repository so the
// sync loop can tell whether the user is still editing.
package watcher

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeTracker records the time of the last observed file mutation
// under a repository root. It is fed by an fsnotify watcher running on
// its own goroutine; SecondsSinceLastChange is the debounce gate the
// poll loop checks before syncing.
type ChangeTracker struct {
	root string

	mu         sync.Mutex
	lastChange time.Time // zero means no change observed yet

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewChangeTracker creates a tracker for the given repository root.
// Call Start to begin observation.
func NewChangeTracker(root string) *ChangeTracker {
	return &ChangeTracker{root: root}
}

// RecordChange updates the last-change timestamp to now.
func (t *ChangeTracker) RecordChange() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastChange = time.Now()
}

// SecondsSinceLastChange returns the elapsed seconds since the last
// recorded change, or +Inf if no change has ever been recorded. The
// +Inf sentinel makes a never-touched repository always pass the
// debounce gate.
func (t *ChangeTracker) SecondsSinceLastChange() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastChange.IsZero() {
		return math.Inf(1)
	}
	return time.Since(t.lastChange).Seconds()
}

// Start begins watching the repository tree. fsnotify watches are not
// recursive, so every subdirectory is registered up front and new
// directories are added as they appear.
func (t *ChangeTracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("tracker already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := addRecursive(watcher, t.root); err != nil {
		_ = watcher.Close()
		return err
	}

	t.watcher = watcher
	t.done = make(chan struct{})
	t.running = true

	t.wg.Add(1)
	go t.processEvents()

	return nil
}

// Stop terminates observation. It is idempotent and safe to call
// without a prior Start.
func (t *ChangeTracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.mu.Unlock()

	close(t.done)
	_ = t.watcher.Close()
	t.wg.Wait()
}

func (t *ChangeTracker) processEvents() {
	defer t.wg.Done()

	for {
		select {
		case <-t.done:
			return

		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handleEvent(event)

		case _, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			// Watcher errors (overflow, removed roots) carry no change
			// information; the next real event re-arms the gate.
		}
	}
}

func (t *ChangeTracker) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if shouldIgnore(event.Name) {
		return
	}

	// Newly created directories need their own watch; directory events
	// themselves never count as content changes.
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			_ = addRecursive(t.watcher, event.Name)
		}
		return
	}

	t.RecordChange()
}

// shouldIgnore filters out paths that never represent user content:
// anything under .git, editor temp files, and dotfiles. Without this
// filter git's own lock files would constantly reset the quiet window.
func shouldIgnore(path string) bool {
	sep := string(filepath.Separator)
	if strings.Contains(path, sep+".git"+sep) || strings.HasSuffix(path, sep+".git") {
		return true
	}

	if strings.HasSuffix(path, "~") || strings.HasSuffix(path, ".swp") || strings.HasSuffix(path, ".tmp") {
		return true
	}

	return strings.HasPrefix(filepath.Base(path), ".")
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // races with deletions are fine
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
