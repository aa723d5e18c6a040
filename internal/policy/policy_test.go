package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"scout/internal/errors"
)

func writePolicy(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}
	return path
}

func TestLoadMissingSourceDisablesPolicy(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Enabled {
		t.Error("Expected missing policy source to yield a disabled policy")
	}
}

func TestLoadParseErrorFailsClosed(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, "policy.json", `{"enabled": true, "deny": [`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected parse error")
	}
	if errors.CodeOf(err) != errors.ConfigError {
		t.Errorf("Expected CONFIG_ERROR, got %s", errors.CodeOf(err))
	}
}

func TestLoadYAMLPolicy(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, "policy.yaml", "enabled: true\nallow:\n  - /tmp/allowed\n")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !p.Enabled {
		t.Error("Expected enabled policy")
	}
	if len(p.Allow) != 1 {
		t.Errorf("Expected 1 allow entry, got %d", len(p.Allow))
	}
	if p.Hash == "" {
		t.Error("Expected policy hash to be set")
	}
}

func TestEvaluateDisabledDenies(t *testing.T) {
	target := t.TempDir()
	d := Evaluate(&Policy{Enabled: false}, target, "discover", "")
	if d.Allowed {
		t.Error("Disabled policy must deny")
	}
	if d.Reason != ReasonDisabled {
		t.Errorf("Expected reason %s, got %s", ReasonDisabled, d.Reason)
	}
}

func TestEvaluateDenyListAncestorMatch(t *testing.T) {
	parent := t.TempDir()
	child := filepath.Join(parent, "nested", "repo")
	if err := os.MkdirAll(child, 0755); err != nil {
		t.Fatalf("Failed to create nested dir: %v", err)
	}

	p := &Policy{Enabled: true, Deny: []string{parent}}
	d := Evaluate(p, child, "discover", "")
	if d.Allowed {
		t.Error("Deny-list ancestor must deny nested targets")
	}
	if d.Reason != ReasonDenyList {
		t.Errorf("Expected reason %s, got %s", ReasonDenyList, d.Reason)
	}
}

func TestEvaluateDenyBeatsAllow(t *testing.T) {
	target := t.TempDir()
	p := &Policy{Enabled: true, Deny: []string{target}, Allow: []string{target}}
	d := Evaluate(p, target, "discover", "")
	if d.Allowed {
		t.Error("Deny list must win over allow list")
	}
}

func TestEvaluateAllowListMiss(t *testing.T) {
	target := t.TempDir()
	other := t.TempDir()
	p := &Policy{Enabled: true, Allow: []string{other}}
	d := Evaluate(p, target, "discover", "")
	if d.Allowed {
		t.Error("Allow-list miss must deny without a token")
	}
	if d.Reason != ReasonAllowList {
		t.Errorf("Expected reason %s, got %s", ReasonAllowList, d.Reason)
	}
}

func TestEvaluateEmptyAllowListAllowsAll(t *testing.T) {
	target := t.TempDir()
	p := &Policy{Enabled: true}
	d := Evaluate(p, target, "discover", "")
	if !d.Allowed {
		t.Errorf("Empty allow list should allow, got reason %s", d.Reason)
	}
}

func TestEvaluateTokenOverridesAllowListMiss(t *testing.T) {
	target := t.TempDir()
	other := t.TempDir()
	p := &Policy{
		Enabled: true,
		Allow:   []string{other},
		Tokens: []TokenSpec{
			{Token: "sesame", Scopes: []string{"discover"}},
		},
	}

	d := Evaluate(p, target, "discover", "sesame")
	if !d.Allowed {
		t.Fatalf("Valid token must override allow-list miss, got reason %s", d.Reason)
	}
	if d.Reason != ReasonTokenAllowed {
		t.Errorf("Expected reason %s, got %s", ReasonTokenAllowed, d.Reason)
	}
	if d.Token == nil || !d.Token.Used {
		t.Error("Expected token detail with Used set")
	}
}

func TestEvaluateExpiredTokenDenies(t *testing.T) {
	target := t.TempDir()
	other := t.TempDir()
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	p := &Policy{
		Enabled: true,
		Allow:   []string{other},
		Tokens: []TokenSpec{
			{Token: "sesame", Scopes: []string{"*"}, ExpiresAt: past},
		},
	}

	d := Evaluate(p, target, "discover", "sesame")
	if d.Allowed {
		t.Error("Expired token must not override allow-list miss")
	}
	if d.Token == nil || !d.Token.Expired {
		t.Error("Expected token detail to record expiry")
	}
}

func TestEvaluateTokenScopeMismatchDenies(t *testing.T) {
	target := t.TempDir()
	other := t.TempDir()
	p := &Policy{
		Enabled: true,
		Allow:   []string{other},
		Tokens: []TokenSpec{
			{Token: "sesame", Scopes: []string{"status"}},
		},
	}

	d := Evaluate(p, target, "discover", "sesame")
	if d.Allowed {
		t.Error("Token scoped to another command must not allow")
	}
}

func TestAllowsCapabilityWithoutToken(t *testing.T) {
	d := Decision{Allowed: true, Reason: ReasonAllowed}
	if !d.AllowsCapability(ScopeFederationWrite) {
		t.Error("A run allowed without a token keeps all optional capabilities")
	}
}

func TestAllowsCapabilityTokenScoped(t *testing.T) {
	d := Decision{
		Allowed: true,
		Reason:  ReasonTokenAllowed,
		Token:   &TokenDetail{Used: true, Covered: true, Scopes: []string{"discover", ScopeHintsWrite}},
	}
	if !d.AllowsCapability(ScopeHintsWrite) {
		t.Error("Token carrying hints:write must allow hint writes")
	}
	if d.AllowsCapability(ScopeFederationWrite) {
		t.Error("Token without federation:write must block federation writes")
	}
}

func TestResolveSourcePrecedence(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv("SCOUT_STATE_DIR", stateDir)
	statePolicy := writePolicy(t, stateDir, "policy.json", `{"enabled": true}`)

	if got := ResolveSource(""); got != statePolicy {
		t.Errorf("Expected state-dir policy %s, got %s", statePolicy, got)
	}

	t.Setenv(SourceEnv, "/env/policy.yaml")
	if got := ResolveSource(""); got != "/env/policy.yaml" {
		t.Errorf("Env var should beat state dir, got %s", got)
	}

	if got := ResolveSource("/flag/policy.json"); got != "/flag/policy.json" {
		t.Errorf("Explicit flag should win, got %s", got)
	}
}
