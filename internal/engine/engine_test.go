package engine

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"scout/internal/contract"
	"scout/internal/federation"
	"scout/internal/hints"
	"scout/internal/logging"
	"scout/internal/paths"
	"scout/internal/policy"
	"scout/internal/store"
)

func quietLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{
		Level:  logging.ErrorLevel,
		Format: logging.JSONFormat,
		Output: io.Discard,
	})
}

func setupTargetRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"go.mod":  "module example.com/widget\n\ngo 1.24\n",
		"main.go": "package main\n\nfunc main() {\n\tmux.HandleFunc(\"/health\", h)\n}\n",
	}
	for rel, content := range files {
		if err := os.WriteFile(filepath.Join(dir, rel), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
	return dir
}

func writeEnabledPolicy(t *testing.T, stateDir string, extra string) {
	t.Helper()
	content := `{"enabled": true` + extra + `}`
	if err := os.WriteFile(filepath.Join(stateDir, "policy.json"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}
}

func TestRunSuccessPersistsEverything(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(paths.StateDirEnv, stateDir)
	repo := setupTargetRepo(t)
	writeEnabledPolicy(t, stateDir, "")

	out := Run(Options{TargetRoot: repo, Command: "discover", Logger: quietLogger()})
	if out.State != contract.StateSuccess {
		t.Fatalf("Expected success, got %s: %v", out.State, out.Err)
	}
	if out.Record == nil {
		t.Fatal("Expected capability record")
	}
	if out.Record.Metrics.EndpointsTotal != 1 {
		t.Errorf("Expected 1 endpoint, got %d", out.Record.Metrics.EndpointsTotal)
	}

	// Workspace artifacts
	if _, err := os.Stat(out.Workspace.SnapshotPath()); err != nil {
		t.Errorf("Expected snapshot: %v", err)
	}
	if _, err := os.Stat(out.Workspace.GraphPath()); err != nil {
		t.Errorf("Expected scan graph artifact: %v", err)
	}
	if _, err := os.Stat(out.Workspace.CachePath()); err != nil {
		t.Errorf("Expected incremental cache: %v", err)
	}
	latest, err := out.Workspace.ReadLatest()
	if err != nil || latest == nil {
		t.Fatalf("Expected latest-run pointer: %v", err)
	}
	if latest.RunID != out.Record.RunID {
		t.Errorf("Latest pointer names %s, record is %s", latest.RunID, out.Record.RunID)
	}

	// Global index
	idx, err := store.LoadGlobalIndex()
	if err != nil {
		t.Fatalf("LoadGlobalIndex failed: %v", err)
	}
	if _, ok := idx.Entries[out.Fingerprint.Hash]; !ok {
		t.Error("Expected global index entry")
	}

	// Federation (no token, so the capability is kept)
	fed, err := federation.Open()
	if err != nil {
		t.Fatalf("federation.Open failed: %v", err)
	}
	if _, ok := fed.Entries[out.Fingerprint.Hash]; !ok {
		t.Error("Expected federated index entry")
	}
}

func TestRunDenyListWritesNothing(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(paths.StateDirEnv, stateDir)
	repo := setupTargetRepo(t)
	writeEnabledPolicy(t, stateDir, `, "deny": ["`+repo+`"]`)

	out := Run(Options{TargetRoot: repo, Command: "discover", Logger: quietLogger()})
	if out.State != contract.StateDenyListMatch {
		t.Fatalf("Expected deny-list state, got %s", out.State)
	}

	// Zero writes: the state dir holds only the policy we planted.
	entries, err := os.ReadDir(stateDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "policy.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Denied run must write nothing, found %v", names)
	}
}

func TestRunDisabledPolicyDenies(t *testing.T) {
	t.Setenv(paths.StateDirEnv, t.TempDir())
	repo := setupTargetRepo(t)

	out := Run(Options{TargetRoot: repo, Command: "discover", PolicyPath: "", Logger: quietLogger()})
	// No policy source at all means governance is disabled: fail closed.
	if os.Getenv(policy.SourceEnv) != "" {
		t.Skip("ambient policy env set")
	}
	if out.State != contract.StatePolicyDisabled {
		t.Fatalf("Expected policy-disabled state, got %s", out.State)
	}
}

func TestRunParseErrorFailsClosed(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(paths.StateDirEnv, stateDir)
	repo := setupTargetRepo(t)
	if err := os.WriteFile(filepath.Join(stateDir, "policy.json"), []byte("{broken"), 0644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}

	out := Run(Options{TargetRoot: repo, Command: "discover", Logger: quietLogger()})
	if out.State != contract.StatePolicyParseError {
		t.Fatalf("Expected parse-error state, got %s", out.State)
	}
}

func TestRunRejectedHintBundle(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(paths.StateDirEnv, stateDir)
	repo := setupTargetRepo(t)
	writeEnabledPolicy(t, stateDir, "")

	bundle := hints.New("some-other-fingerprint", hints.Payload{Keywords: []string{"x"}}, 0)
	hintPath := filepath.Join(t.TempDir(), "hints.json")
	if err := bundle.Save(hintPath); err != nil {
		t.Fatalf("Failed to save bundle: %v", err)
	}

	out := Run(Options{TargetRoot: repo, Command: "discover", HintPath: hintPath, Logger: quietLogger()})
	if out.State != contract.StateHintRejected {
		t.Fatalf("Expected hint-rejected state, got %s", out.State)
	}
	if out.Record != nil {
		t.Error("Rejected hint must abort before any record is produced")
	}
}

func TestRunAppliedHintBundle(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(paths.StateDirEnv, stateDir)
	repo := setupTargetRepo(t)
	writeEnabledPolicy(t, stateDir, "")

	first := Run(Options{TargetRoot: repo, Command: "discover", Logger: quietLogger()})
	if first.State != contract.StateSuccess {
		t.Fatalf("Baseline run failed: %s", first.State)
	}

	bundle := hints.New(first.Fingerprint.Hash, hints.Payload{Keywords: []string{"widget"}}, 0)
	hintPath := filepath.Join(t.TempDir(), "hints.json")
	if err := bundle.Save(hintPath); err != nil {
		t.Fatalf("Failed to save bundle: %v", err)
	}

	out := Run(Options{TargetRoot: repo, Command: "discover", HintPath: hintPath, Logger: quietLogger()})
	if out.State != contract.StateSuccess {
		t.Fatalf("Hinted run failed: %s (%v)", out.State, out.Err)
	}
	if !out.Record.Metrics.HintApplied {
		t.Error("Expected HintApplied on the record")
	}
	if out.HintEffect == nil {
		t.Error("Expected measured hint effectiveness")
	}
}

func TestRunStrictFederationScopeBlock(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(paths.StateDirEnv, stateDir)
	repo := setupTargetRepo(t)
	other := t.TempDir()
	writeEnabledPolicy(t, stateDir,
		`, "allow": ["`+other+`"], "tokens": [{"token": "sesame", "scopes": ["discover"]}]`)

	out := Run(Options{
		TargetRoot: repo,
		Command:    "discover",
		Token:      "sesame",
		Strict:     true,
		Logger:     quietLogger(),
	})
	if out.State != contract.StateFederationScopeBlock {
		t.Fatalf("Expected federation scope block in strict mode, got %s (%v)", out.State, out.Err)
	}
}

func TestRunTokenScopeSkipsFederationNonStrict(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(paths.StateDirEnv, stateDir)
	repo := setupTargetRepo(t)
	other := t.TempDir()
	writeEnabledPolicy(t, stateDir,
		`, "allow": ["`+other+`"], "tokens": [{"token": "sesame", "scopes": ["discover"]}]`)

	out := Run(Options{TargetRoot: repo, Command: "discover", Token: "sesame", Logger: quietLogger()})
	if out.State != contract.StateSuccess {
		t.Fatalf("Expected success, got %s (%v)", out.State, out.Err)
	}
	if out.FederationPath != "" {
		t.Error("Federation write must be skipped without federation:write scope")
	}

	fed, err := federation.Open()
	if err != nil {
		t.Fatalf("federation.Open failed: %v", err)
	}
	if len(fed.Entries) != 0 {
		t.Error("Federated index must stay empty for a scope-blocked run")
	}
}

func TestRunSmartReuseOnSecondRun(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(paths.StateDirEnv, stateDir)
	repo := setupTargetRepo(t)
	writeEnabledPolicy(t, stateDir, "")

	first := Run(Options{TargetRoot: repo, Command: "discover", Logger: quietLogger()})
	if first.State != contract.StateSuccess {
		t.Fatalf("First run failed: %s", first.State)
	}
	if first.Record.Metrics.SmartReused {
		t.Fatal("First run cannot reuse, there is no prior graph")
	}

	second := Run(Options{TargetRoot: repo, Command: "discover", Logger: quietLogger()})
	if second.State != contract.StateSuccess {
		t.Fatalf("Second run failed: %s", second.State)
	}
	if !second.Record.Metrics.SmartReused {
		t.Errorf("Expected wholesale reuse on second unchanged run, reuse decision: %+v", second.Reuse)
	}
	if second.Record.GraphFingerprint != first.Record.GraphFingerprint {
		t.Error("Reused graph must keep its fingerprint")
	}
	if second.Record.Metrics.ModuleCandidates != first.Record.Metrics.ModuleCandidates ||
		second.Record.Metrics.EndpointsTotal != first.Record.Metrics.EndpointsTotal {
		t.Error("Reused run must report identical candidates and endpoints")
	}
}

func TestRunRejectsStateDirInsideTarget(t *testing.T) {
	repo := setupTargetRepo(t)
	stateDir := filepath.Join(repo, ".scout-state")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	t.Setenv(paths.StateDirEnv, stateDir)
	writeEnabledPolicy(t, stateDir, "")

	out := Run(Options{TargetRoot: repo, Command: "discover", Logger: quietLogger()})
	if out.State != contract.StateInternalError {
		t.Fatalf("State dir inside the target must abort, got %s", out.State)
	}

	// Nothing may be persisted into the guarded tree.
	entries, err := os.ReadDir(stateDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "policy.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Aborted run must write nothing, found %v", names)
	}
}

func TestGateStatusCommandIsGoverned(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(paths.StateDirEnv, stateDir)
	repo := setupTargetRepo(t)
	writeEnabledPolicy(t, stateDir, `, "deny": ["`+repo+`"]`)

	decision, _, state, err := Gate(repo, "status", "", "")
	if err != nil {
		t.Fatalf("Gate failed: %v", err)
	}
	if decision.Allowed {
		t.Error("Denied target must deny status too")
	}
	if state != contract.StateDenyListMatch {
		t.Errorf("Expected deny-list state, got %s", state)
	}
}
