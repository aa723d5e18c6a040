// Package identity derives stable repository fingerprints. A fingerprint
// never changes for the same canonical root, which makes it usable as the
// primary key into workspace and global state.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"scout/internal/paths"
)

// RepoFingerprint identifies one target repository.
type RepoFingerprint struct {
	// Hash is the full sha256 over the canonical root
	Hash string `json:"hash"`
	// Short is the first 16 hex chars, used in directory names and IDs
	Short string `json:"short"`
	// CanonicalRoot is the symlink-resolved absolute root the hash covers
	CanonicalRoot string `json:"canonicalRoot"`
	// Name is a sanitized human-readable label derived from the root
	Name string `json:"name"`
}

// Compute derives the fingerprint for a target root. The root is
// canonicalized first so bind mounts of the same tree through different
// symlinks map to one fingerprint.
func Compute(root string) (*RepoFingerprint, error) {
	canonical, err := paths.CanonicalRoot(root)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing target root: %w", err)
	}

	sum := sha256.Sum256([]byte(canonical))
	hash := hex.EncodeToString(sum[:])

	return &RepoFingerprint{
		Hash:          hash,
		Short:         hash[:16],
		CanonicalRoot: canonical,
		Name:          sanitizeRepoName(filepath.Base(canonical)),
	}, nil
}

// RunID formats a fully qualified run identifier.
// Format: scout:<repo-short>:run:<uuid>
func (f *RepoFingerprint) RunID(uuid string) string {
	return fmt.Sprintf("scout:%s:run:%s", f.Short, uuid)
}

// sanitizeRepoName converts a repo name to a safe, deterministic format
func sanitizeRepoName(name string) string {
	sanitized := strings.ReplaceAll(name, "/", "-")
	sanitized = strings.ReplaceAll(sanitized, "\\", "-")
	sanitized = strings.ReplaceAll(sanitized, ":", "-")
	sanitized = strings.ToLower(sanitized)
	sanitized = strings.Trim(sanitized, "-")

	if sanitized == "" {
		sanitized = "unknown"
	}

	return sanitized
}
