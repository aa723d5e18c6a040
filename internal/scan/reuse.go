package scan

import (
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"scout/internal/logging"
)

// ReusePolicy controls smart wholesale reuse of a prior scan graph.
// Reuse never bypasses the governance gate or the read-only guard; it
// only skips the walk itself.
type ReusePolicy struct {
	// MaxAge is the oldest graph eligible for reuse
	MaxAge time.Duration
	// MinHitRatio is the minimum recorded cache-hit ratio of the prior run
	MinHitRatio float64
	// SampleSize is how many files get re-validated before reuse
	SampleSize int
}

// DefaultReusePolicy matches the documented freshness thresholds.
func DefaultReusePolicy() ReusePolicy {
	return ReusePolicy{
		MaxAge:      15 * time.Minute,
		MinHitRatio: 0.5,
		SampleSize:  16,
	}
}

// ReuseDecision explains why a graph was or was not reused.
type ReuseDecision struct {
	Reused bool   `json:"reused"`
	Reason string `json:"reason"`
}

// TryReuse checks a prior graph against the policy and re-validates a
// random sample of its file identities. On success the prior graph is
// returned with reuse metrics stamped; any drift forces a full scan.
func TryReuse(prior *Graph, repoRoot string, policy ReusePolicy, logger *logging.Logger) (*Graph, ReuseDecision) {
	if prior == nil {
		return nil, ReuseDecision{Reason: "no prior scan graph"}
	}

	age := time.Since(prior.CreatedAt)
	if age > policy.MaxAge {
		return nil, ReuseDecision{Reason: "prior graph too old"}
	}
	if prior.Metrics.LimitsHit {
		return nil, ReuseDecision{Reason: "prior graph was truncated by budget"}
	}
	// A complete walk visited every file, so its recorded hit ratio is
	// provenance, not fidelity: a cold first scan records ratio 0 yet is
	// exact. The ratio gate only screens graphs that skipped the walk
	// themselves, where a low ratio marks churn at reuse time.
	if prior.Metrics.SmartReused && prior.Metrics.CacheHitRatio < policy.MinHitRatio {
		return nil, ReuseDecision{Reason: "prior cache-hit ratio below threshold"}
	}

	if drifted, path := sampleDrift(prior, repoRoot, policy.SampleSize); drifted {
		logger.Debug("Reuse sample detected drift", map[string]interface{}{"path": path})
		return nil, ReuseDecision{Reason: "sampled re-validation detected drift"}
	}

	start := time.Now()
	reused := *prior
	reused.Metrics.SmartReused = true
	reused.Metrics.DurationMillis = time.Since(start).Milliseconds()
	return &reused, ReuseDecision{Reused: true, Reason: "fresh, warm and validated"}
}

// sampleDrift re-extracts a random sample of the prior graph's files and
// compares facts. Any difference, including a vanished file, is drift.
func sampleDrift(prior *Graph, repoRoot string, sampleSize int) (bool, string) {
	n := len(prior.Files)
	if n == 0 {
		return false, ""
	}
	if sampleSize > n {
		sampleSize = n
	}

	perm := rand.Perm(n)
	for _, idx := range perm[:sampleSize] {
		f := prior.Files[idx]
		absPath := filepath.Join(repoRoot, filepath.FromSlash(f.Path))
		if _, err := os.Stat(absPath); err != nil {
			return true, f.Path
		}
		fresh, err := extractFile(f.Path, absPath)
		if err != nil {
			return true, f.Path
		}
		if !factsEqual(f, fresh) {
			return true, f.Path
		}
	}
	return false, ""
}

// factsEqual compares the fingerprint-relevant parts of two fact sets.
func factsEqual(a, b FileFacts) bool {
	if a.Lines != b.Lines || len(a.Classes) != len(b.Classes) ||
		len(a.Endpoints) != len(b.Endpoints) || len(a.Resources) != len(b.Resources) {
		return false
	}
	for i := range a.Classes {
		if a.Classes[i] != b.Classes[i] {
			return false
		}
	}
	for i := range a.Endpoints {
		if a.Endpoints[i] != b.Endpoints[i] {
			return false
		}
	}
	return true
}
