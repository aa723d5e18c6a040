package identity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComputeIsStable(t *testing.T) {
	dir := t.TempDir()

	a, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	b, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if a.Hash != b.Hash {
		t.Error("Fingerprint must be stable for the same root")
	}
	if len(a.Hash) != 64 {
		t.Errorf("Expected sha256 hex hash, got %d chars", len(a.Hash))
	}
	if a.Short != a.Hash[:16] {
		t.Errorf("Short form must prefix the hash: %s", a.Short)
	}
}

func TestComputeResolvesSymlinks(t *testing.T) {
	real := t.TempDir()
	link := filepath.Join(t.TempDir(), "alias")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("Symlinks unavailable: %v", err)
	}

	direct, err := Compute(real)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	viaLink, err := Compute(link)
	if err != nil {
		t.Fatalf("Compute via symlink failed: %v", err)
	}
	if direct.Hash != viaLink.Hash {
		t.Error("Symlinked paths to the same tree must share a fingerprint")
	}
}

func TestRunIDFormat(t *testing.T) {
	dir := t.TempDir()
	fp, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	runID := fp.RunID("11111111-2222-3333-4444-555555555555")
	parts := strings.Split(runID, ":")
	if len(parts) != 4 || parts[0] != "scout" || parts[2] != "run" {
		t.Errorf("Unexpected run ID format: %s", runID)
	}
	if parts[1] != fp.Short {
		t.Errorf("Run ID must embed the short fingerprint: %s", runID)
	}
}

func TestSanitizedRepoName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "My Project")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	fp, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if fp.Name != strings.ToLower(fp.Name) {
		t.Errorf("Repo name must be lowercased: %s", fp.Name)
	}
}
