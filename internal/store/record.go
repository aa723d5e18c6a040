// Package store persists capability records across two tiers: the
// per-fingerprint workspace and the shared global state. Every write is
// atomic; a denied run writes nothing at all.
package store

import (
	"time"

	"scout/internal/calibrate"
	"scout/internal/version"
)

// RunMetrics is the measured outcome of one run.
type RunMetrics struct {
	AmbiguityRatio   float64                  `json:"ambiguityRatio"`
	Confidence       float64                  `json:"confidence"`
	ConfidenceTier   calibrate.ConfidenceTier `json:"confidenceTier"`
	NeedsHumanHint   bool                     `json:"needsHumanHint"`
	LimitsHit        bool                     `json:"limitsHit"`
	ModuleCandidates int                      `json:"moduleCandidates"`
	EndpointsTotal   int                      `json:"endpointsTotal"`
	SmartReused      bool                     `json:"smartReused"`
	DurationMillis   int64                    `json:"durationMillis"`
	// Hint feedback loop fields
	HintApplied    bool    `json:"hintApplied"`
	HintEffect     float64 `json:"hintEffect,omitempty"`
	HintEmitted    bool    `json:"hintEmitted,omitempty"`
}

// Governance records the policy context a run executed under. The token
// value itself is never stored, only its fingerprint.
type Governance struct {
	Enabled    bool   `json:"enabled"`
	TokenUsed  bool   `json:"tokenUsed"`
	TokenHash  string `json:"tokenHash,omitempty"`
	PolicyHash string `json:"policyHash,omitempty"`
	Reason     string `json:"reason"`
}

// CapabilityRecord is one run's record: the unit of the per-repo journal
// and of federation history.
type CapabilityRecord struct {
	RunID           string         `json:"runId"`
	RepoFingerprint string         `json:"repoFingerprint"`
	RepoName        string         `json:"repoName"`
	RepoRoot        string         `json:"repoRoot"`
	Command         string         `json:"command"`
	Timestamp       time.Time      `json:"timestamp"`
	Metrics         RunMetrics     `json:"metrics"`
	Producer        version.Triple `json:"producer"`
	Governance      Governance     `json:"governance"`
	// Keywords and Endpoints feed federation queries
	Keywords  []string `json:"keywords,omitempty"`
	Endpoints []string `json:"endpoints,omitempty"`
	// GraphFingerprint links the record to its scan graph artifact
	GraphFingerprint string `json:"graphFingerprint,omitempty"`
}
