// Package paths resolves the global-state directory layout and provides
// canonical path helpers. The target repository is never written; the only
// mutable roots are the global-state directory and the per-fingerprint
// workspaces beneath it.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StateDirEnv overrides the global-state directory location.
const StateDirEnv = "SCOUT_STATE_DIR"

// GetStateDir returns the global-state directory (default ~/.scout).
// The directory is not created; callers create it only after the
// governance gate allows the command.
func GetStateDir() (string, error) {
	if dir := os.Getenv(StateDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".scout"), nil
}

// GetWorkspaceDir returns the per-repository workspace directory for a
// repo fingerprint.
func GetWorkspaceDir(fingerprint string) (string, error) {
	state, err := GetStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, "workspaces", fingerprint), nil
}

// GetGlobalIndexPath returns the path of the global capability index.
func GetGlobalIndexPath() (string, error) {
	state, err := GetStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, "capability-index.json"), nil
}

// GetFederationDir returns the federation directory under global state.
func GetFederationDir() (string, error) {
	state, err := GetStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, "federation"), nil
}

// CanonicalRoot resolves a target root to its canonical absolute form:
// absolute, symlink-resolved, cleaned. Repo fingerprints are derived from
// this value, so it must be stable across invocations.
func CanonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return filepath.Clean(resolved), nil
}

// IsWithinRepo reports whether path falls inside the repository root.
// Symlinks are resolved on both sides so a link cannot smuggle the
// mutable state directory into the guarded target tree. Paths that do
// not exist yet are judged by their cleaned absolute form.
func IsWithinRepo(path, repoRoot string) bool {
	root, err := canonicalOrAbs(repoRoot)
	if err != nil {
		return false
	}
	p, err := canonicalOrAbs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." ||
		(rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func canonicalOrAbs(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return filepath.Clean(resolved), nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	parent := filepath.Dir(abs)
	if parent == abs {
		return abs, nil
	}
	// Resolve the deepest existing ancestor and rejoin, so a path that
	// does not exist yet still compares against resolved roots.
	resolvedParent, err := canonicalOrAbs(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(abs)), nil
}
