// Package hints manages typed, expiring hint bundles. A bundle is a
// feedback artifact: a low-confidence run emits one, a human or agent
// refines it, a later run applies it. Bundles bias ranking for one run
// only and never carry business data or touch the target repository.
package hints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"scout/internal/errors"
	"scout/internal/layout"
	"scout/internal/version"
)

// KindProfileDelta is the only bundle kind the discovery engine accepts.
const KindProfileDelta = "profile_delta"

// ScopeDiscovery is the scope this engine consumes. Bundles scoped to
// anything else are rejected on apply.
const ScopeDiscovery = "discovery"

// Payload is the minimal identity-hint content of a bundle.
type Payload struct {
	Keywords  []string `json:"keywords,omitempty"`
	PathHints []string `json:"pathHints,omitempty"`
}

// Bundle is a typed, versioned, expiring hint delta.
type Bundle struct {
	Kind            string         `json:"kind"`
	Schema          int            `json:"schema"`
	Producer        version.Triple `json:"producer"`
	RepoFingerprint string         `json:"repoFingerprint"`
	Scopes          []string       `json:"scopes"`
	CreatedAt       time.Time      `json:"createdAt"`
	ExpiresAt       *time.Time     `json:"expiresAt,omitempty"`
	TTLSeconds      int            `json:"ttlSeconds,omitempty"`
	Payload         Payload        `json:"payload"`
}

// DefaultTTL applies when a bundle declares neither expiry nor TTL at
// creation time.
const DefaultTTL = 24 * time.Hour

// New creates a discovery-scoped bundle for a repo fingerprint.
func New(repoFingerprint string, payload Payload, ttl time.Duration) *Bundle {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	expires := now.Add(ttl)
	return &Bundle{
		Kind:            KindProfileDelta,
		Schema:          version.SchemaVersion,
		Producer:        version.Current(),
		RepoFingerprint: repoFingerprint,
		Scopes:          []string{ScopeDiscovery},
		CreatedAt:       now,
		ExpiresAt:       &expires,
		Payload:         payload,
	}
}

// Expired reports whether the bundle's expiry or TTL has passed.
func (b *Bundle) Expired(now time.Time) bool {
	if b.ExpiresAt != nil {
		return now.After(*b.ExpiresAt)
	}
	if b.TTLSeconds > 0 {
		return now.After(b.CreatedAt.Add(time.Duration(b.TTLSeconds) * time.Second))
	}
	return false
}

// VerifyOptions control bundle verification on apply.
type VerifyOptions struct {
	// RepoFingerprint is the fingerprint of the current target
	RepoFingerprint string
	// AllowCrossRepo accepts a fingerprint mismatch when set explicitly
	AllowCrossRepo bool
	Now            time.Time
}

// Verify rejects expired, scope-mismatched and fingerprint-mismatched
// bundles. A rejected bundle must have no effect on the run.
func (b *Bundle) Verify(opts VerifyOptions) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if b.Kind != KindProfileDelta {
		return errors.New(errors.HintRejected,
			fmt.Sprintf("unsupported hint bundle kind %q", b.Kind), nil)
	}
	if b.Expired(now) {
		return errors.New(errors.HintRejected, "hint bundle has expired", nil)
	}
	if !scopeIncludes(b.Scopes, ScopeDiscovery) {
		return errors.New(errors.HintRejected, "hint bundle is not scoped to discovery", nil)
	}
	if b.RepoFingerprint != opts.RepoFingerprint && !opts.AllowCrossRepo {
		return errors.New(errors.HintRejected,
			"hint bundle fingerprint does not match target repository", nil)
	}
	return nil
}

// ToLayoutHints converts the payload into ranking bias for one run.
func (b *Bundle) ToLayoutHints() *layout.Hints {
	return &layout.Hints{
		Keywords:  b.Payload.Keywords,
		PathHints: b.Payload.PathHints,
	}
}

// Effectiveness is the measured confidence delta of applying a bundle.
type Effectiveness struct {
	ConfidenceBefore float64 `json:"confidenceBefore"`
	ConfidenceAfter  float64 `json:"confidenceAfter"`
	Delta            float64 `json:"delta"`
}

// MeasureEffectiveness records before/after confidence of a hinted run.
func MeasureEffectiveness(before, after float64) Effectiveness {
	return Effectiveness{
		ConfidenceBefore: before,
		ConfidenceAfter:  after,
		Delta:            after - before,
	}
}

// Load reads and decodes a bundle file.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.HintRejected, "failed to read hint bundle", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.New(errors.HintRejected, "failed to parse hint bundle", err)
	}
	return &b, nil
}

// Save writes a bundle atomically (temp + rename) into the workspace.
// Bundles are never written into the target repository.
func (b *Bundle) Save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling hint bundle: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating hint bundle directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing hint bundle: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming hint bundle: %w", err)
	}
	return nil
}

// Suggest derives a starter payload from ranked candidates so a human only
// has to trim, not author from scratch.
func Suggest(candidates []*layout.Candidate, limit int) Payload {
	var p Payload
	for i, c := range candidates {
		if i >= limit {
			break
		}
		if c.Name != "" {
			p.Keywords = appendUnique(p.Keywords, c.Name)
		}
		if c.Root != "." {
			p.PathHints = appendUnique(p.PathHints, c.Root)
		}
	}
	return p
}

func scopeIncludes(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
