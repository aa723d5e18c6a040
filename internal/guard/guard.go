// Package guard enforces the read-only contract on the target repository.
// A full recursive snapshot is taken before dispatch and compared after;
// the snapshot deliberately ignores scan budgets, because a truncated
// integrity check could hide an out-of-bounds write under a truncated scan.
package guard

import (
	"fmt"
	"os"
	"path/filepath"

	"scout/internal/errors"
)

// FileStat is one snapshot entry: identity is path + size + mtime.
type FileStat struct {
	Size    int64
	ModTime int64 // UnixNano
}

// Snapshot maps repo-relative paths to their stat identity.
type Snapshot map[string]FileStat

// Violation describes one detected mutation of the target tree.
type Violation struct {
	Path   string `json:"path"`
	Change string `json:"change"` // "added", "removed", "modified"
}

// Guard watches one target root for the duration of a run.
type Guard struct {
	root    string
	before  Snapshot
	allowed map[string]bool
}

// New creates a guard for the given canonical target root. Paths in
// allowedWrites (repo-relative, slash-separated) are excluded from
// verification; the core engine declares none.
func New(root string, allowedWrites []string) *Guard {
	allowed := make(map[string]bool, len(allowedWrites))
	for _, p := range allowedWrites {
		allowed[filepath.ToSlash(p)] = true
	}
	return &Guard{root: root, allowed: allowed}
}

// Arm takes the before snapshot. It walks the entire tree regardless of
// any file or time budget applied elsewhere.
func (g *Guard) Arm() error {
	snap, err := takeSnapshot(g.root)
	if err != nil {
		return errors.New(errors.InternalError, "failed to snapshot target root", err)
	}
	g.before = snap
	return nil
}

// Verify takes the after snapshot and returns every undeclared delta.
// A non-empty result is a read-only violation.
func (g *Guard) Verify() ([]Violation, error) {
	if g.before == nil {
		return nil, errors.New(errors.InternalError, "guard verified before being armed", nil)
	}

	after, err := takeSnapshot(g.root)
	if err != nil {
		return nil, errors.New(errors.InternalError, "failed to re-snapshot target root", err)
	}

	var violations []Violation
	for path, stat := range g.before {
		if g.allowed[path] {
			continue
		}
		now, ok := after[path]
		if !ok {
			violations = append(violations, Violation{Path: path, Change: "removed"})
			continue
		}
		if now != stat {
			violations = append(violations, Violation{Path: path, Change: "modified"})
		}
	}
	for path := range after {
		if g.allowed[path] {
			continue
		}
		if _, ok := g.before[path]; !ok {
			violations = append(violations, Violation{Path: path, Change: "added"})
		}
	}

	return violations, nil
}

// FileCount returns the number of files in the armed snapshot.
func (g *Guard) FileCount() int {
	return len(g.before)
}

func takeSnapshot(root string) (Snapshot, error) {
	snap := make(Snapshot)

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable entries cannot be mutated by us either; skip.
			return nil //nolint:nilerr // intentional: skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // entry vanished between walk and stat
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}
		snap[filepath.ToSlash(rel)] = FileStat{
			Size:    info.Size(),
			ModTime: info.ModTime().UnixNano(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}
