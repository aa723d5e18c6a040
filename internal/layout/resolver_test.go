package layout

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"scout/internal/logging"
)

func newTestLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{
		Level:  logging.ErrorLevel,
		Format: logging.JSONFormat,
		Output: io.Discard,
	})
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", rel, err)
	}
}

func TestResolveSingleGoModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/widget\n\ngo 1.24\n")

	result, err := Resolve(dir, nil, newTestLogger())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.AdapterUsed != "manifest" {
		t.Errorf("Expected adapter 'manifest', got %s", result.AdapterUsed)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(result.Candidates))
	}
	top := result.Candidates[0]
	if top.Name != "widget" {
		t.Errorf("Expected module name 'widget', got %s", top.Name)
	}
	if top.Language != LanguageGo {
		t.Errorf("Expected language go, got %s", top.Language)
	}
	if result.AmbiguityRatio != 0 {
		t.Errorf("Single candidate should have ambiguity 0, got %f", result.AmbiguityRatio)
	}
}

func TestResolvePnpmWorkspace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pnpm-workspace.yaml", "packages:\n  - packages/*\n")
	writeFile(t, dir, "package.json", `{"name": "umbrella"}`)
	writeFile(t, dir, "packages/api/package.json", `{"name": "api"}`)
	writeFile(t, dir, "packages/web/package.json", `{"name": "web"}`)

	result, err := Resolve(dir, nil, newTestLogger())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.AdapterUsed != "workspace" {
		t.Errorf("Expected adapter 'workspace', got %s", result.AdapterUsed)
	}

	roots := map[string]bool{}
	for _, c := range result.Candidates {
		roots[c.Root] = true
	}
	if !roots["packages/api"] || !roots["packages/web"] {
		t.Errorf("Expected workspace member candidates, got %v", roots)
	}
}

func TestResolveConventionFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.py", "print('a')\n")
	writeFile(t, dir, "src/b.py", "print('b')\n")
	writeFile(t, dir, "src/c.py", "print('c')\n")

	result, err := Resolve(dir, nil, newTestLogger())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.AdapterUsed != "convention" {
		t.Errorf("Expected adapter 'convention', got %s", result.AdapterUsed)
	}
	if result.FallbackReason == "" {
		t.Error("Convention fallback should record a reason")
	}
	if len(result.Candidates) == 0 {
		t.Fatal("Expected at least one convention candidate")
	}
	if result.Candidates[0].Root != "src" {
		t.Errorf("Expected candidate root 'src', got %s", result.Candidates[0].Root)
	}
}

func TestResolveNoCandidates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "# empty\n")

	result, err := Resolve(dir, nil, newTestLogger())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.AdapterUsed != "none" {
		t.Errorf("Expected adapter 'none', got %s", result.AdapterUsed)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("Expected no candidates, got %d", len(result.Candidates))
	}
}

func TestResolvePathHintBiasesRanking(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pnpm-workspace.yaml", "packages:\n  - packages/*\n")
	writeFile(t, dir, "packages/alpha/package.json", `{"name": "alpha"}`)
	writeFile(t, dir, "packages/beta/package.json", `{"name": "beta"}`)

	unhinted, err := Resolve(dir, nil, newTestLogger())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if unhinted.HintApplied {
		t.Error("HintApplied must be false without hints")
	}

	hinted, err := Resolve(dir, &Hints{PathHints: []string{"beta"}}, newTestLogger())
	if err != nil {
		t.Fatalf("Resolve with hints failed: %v", err)
	}
	if !hinted.HintApplied {
		t.Fatal("Expected the path hint to apply")
	}
	if hinted.Candidates[0].Name != "beta" {
		t.Errorf("Expected hinted candidate 'beta' on top, got %s", hinted.Candidates[0].Name)
	}
	if hinted.AmbiguityRatio >= unhinted.AmbiguityRatio {
		t.Errorf("Hint should reduce ambiguity: %f -> %f",
			unhinted.AmbiguityRatio, hinted.AmbiguityRatio)
	}
}

func TestAmbiguityRatioEqualCandidates(t *testing.T) {
	a := &Candidate{Root: "a", Score: 4}
	b := &Candidate{Root: "b", Score: 4}
	ratio := ambiguityRatio([]*Candidate{a, b})
	if ratio != 1 {
		t.Errorf("Equal scores should give ratio 1, got %f", ratio)
	}
}

func TestMergeCandidatesDeduplicatesByRoot(t *testing.T) {
	a := &Candidate{Root: "svc", Score: 2, Evidence: []Evidence{{Source: "x", Weight: 2}}}
	b := &Candidate{Root: "svc", Score: 3, Evidence: []Evidence{{Source: "y", Weight: 3}}}
	merged := mergeCandidates([]*Candidate{a, b})
	if len(merged) != 1 {
		t.Fatalf("Expected 1 merged candidate, got %d", len(merged))
	}
	if merged[0].Score != 5 {
		t.Errorf("Expected merged score 5, got %f", merged[0].Score)
	}
	if len(merged[0].Evidence) != 2 {
		t.Errorf("Expected merged evidence, got %d entries", len(merged[0].Evidence))
	}
}
