package hints

import (
	"path/filepath"
	"testing"
	"time"

	"scout/internal/errors"
	"scout/internal/layout"
)

const testFingerprint = "abc123def4567890abc123def4567890abc123def4567890abc123def4567890"

func TestNewBundleDefaults(t *testing.T) {
	b := New(testFingerprint, Payload{Keywords: []string{"api"}}, 0)

	if b.Kind != KindProfileDelta {
		t.Errorf("Expected kind %s, got %s", KindProfileDelta, b.Kind)
	}
	if len(b.Scopes) != 1 || b.Scopes[0] != ScopeDiscovery {
		t.Errorf("Expected discovery scope, got %v", b.Scopes)
	}
	if b.ExpiresAt == nil {
		t.Fatal("Expected default expiry")
	}
	ttl := b.ExpiresAt.Sub(b.CreatedAt)
	if ttl != DefaultTTL {
		t.Errorf("Expected default TTL %v, got %v", DefaultTTL, ttl)
	}
}

func TestVerifyAcceptsMatchingBundle(t *testing.T) {
	b := New(testFingerprint, Payload{}, time.Hour)
	err := b.Verify(VerifyOptions{RepoFingerprint: testFingerprint})
	if err != nil {
		t.Errorf("Expected bundle to verify: %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	b := New(testFingerprint, Payload{}, time.Hour)
	err := b.Verify(VerifyOptions{
		RepoFingerprint: testFingerprint,
		Now:             time.Now().Add(2 * time.Hour),
	})
	if err == nil {
		t.Fatal("Expected expired bundle to be rejected")
	}
	if errors.CodeOf(err) != errors.HintRejected {
		t.Errorf("Expected HINT_REJECTED, got %s", errors.CodeOf(err))
	}
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	b := New(testFingerprint, Payload{}, time.Hour)
	b.Kind = "exploit_payload"
	if err := b.Verify(VerifyOptions{RepoFingerprint: testFingerprint}); err == nil {
		t.Error("Expected unknown kind to be rejected")
	}
}

func TestVerifyRejectsWrongScope(t *testing.T) {
	b := New(testFingerprint, Payload{}, time.Hour)
	b.Scopes = []string{"federation"}
	if err := b.Verify(VerifyOptions{RepoFingerprint: testFingerprint}); err == nil {
		t.Error("Expected non-discovery scope to be rejected")
	}
}

func TestVerifyFingerprintMismatch(t *testing.T) {
	b := New(testFingerprint, Payload{}, time.Hour)

	err := b.Verify(VerifyOptions{RepoFingerprint: "other"})
	if err == nil {
		t.Fatal("Expected fingerprint mismatch to be rejected")
	}

	err = b.Verify(VerifyOptions{RepoFingerprint: "other", AllowCrossRepo: true})
	if err != nil {
		t.Errorf("Cross-repo override should accept the bundle: %v", err)
	}
}

func TestVerifyTTLOnlyBundle(t *testing.T) {
	b := New(testFingerprint, Payload{}, time.Hour)
	b.ExpiresAt = nil
	b.TTLSeconds = 60

	if err := b.Verify(VerifyOptions{RepoFingerprint: testFingerprint}); err != nil {
		t.Errorf("Fresh TTL bundle should verify: %v", err)
	}
	err := b.Verify(VerifyOptions{
		RepoFingerprint: testFingerprint,
		Now:             b.CreatedAt.Add(2 * time.Minute),
	})
	if err == nil {
		t.Error("Expected TTL expiry to be rejected")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	b := New(testFingerprint, Payload{Keywords: []string{"billing"}, PathHints: []string{"services/billing"}}, time.Hour)
	path := filepath.Join(t.TempDir(), "hints.json")

	if err := b.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.RepoFingerprint != testFingerprint {
		t.Errorf("Fingerprint lost in round trip: %s", loaded.RepoFingerprint)
	}
	if len(loaded.Payload.Keywords) != 1 || loaded.Payload.Keywords[0] != "billing" {
		t.Errorf("Payload lost in round trip: %+v", loaded.Payload)
	}
}

func TestSuggestTopCandidates(t *testing.T) {
	candidates := []*layout.Candidate{
		{Name: "api", Root: "services/api", Score: 7},
		{Name: "web", Root: "apps/web", Score: 4},
		{Name: "tools", Root: "tools", Score: 1},
		{Name: "extra", Root: "extra", Score: 0.5},
	}

	payload := Suggest(candidates, 2)
	if len(payload.PathHints) != 2 {
		t.Fatalf("Expected 2 path hints, got %v", payload.PathHints)
	}
	if payload.PathHints[0] != "services/api" {
		t.Errorf("Expected top candidate first, got %s", payload.PathHints[0])
	}
}

func TestMeasureEffectiveness(t *testing.T) {
	e := MeasureEffectiveness(0.4, 0.9)
	if e.Delta != 0.5 {
		t.Errorf("Expected delta 0.5, got %f", e.Delta)
	}
}
