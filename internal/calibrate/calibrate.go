// Package calibrate scores discovery confidence. The ambiguity ratio
// measures candidate separation; the confidence tier is a coarse bucket
// that downstream consumers gate on.
package calibrate

import (
	"scout/internal/layout"
)

// ConfidenceTier represents the quality tier of a discovery result.
type ConfidenceTier string

const (
	// TierHigh indicates a clear manifest- or workspace-backed winner.
	TierHigh ConfidenceTier = "high"
	// TierMedium indicates a winner with moderate separation.
	TierMedium ConfidenceTier = "medium"
	// TierLow indicates poorly separated or convention-only candidates.
	TierLow ConfidenceTier = "low"
	// TierSpeculative indicates no usable candidates at all.
	TierSpeculative ConfidenceTier = "speculative"
)

// Thresholds configures the scorer.
type Thresholds struct {
	// MinConfidence is the lowest score that avoids needs_human_hint
	MinConfidence float64 `json:"minConfidence"`
	// AmbiguityThreshold is the ratio above which candidates are
	// considered poorly separated
	AmbiguityThreshold float64 `json:"ambiguityThreshold"`
}

// DefaultThresholds returns the stock gate configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinConfidence:      0.5,
		AmbiguityThreshold: 0.8,
	}
}

// Score is the calibration outcome attached to every run record.
type Score struct {
	AmbiguityRatio float64        `json:"ambiguityRatio"`
	Confidence     float64        `json:"confidence"`
	Tier           ConfidenceTier `json:"confidenceTier"`
	NeedsHumanHint bool           `json:"needsHumanHint"`
	Reasons        []string       `json:"reasons,omitempty"`
}

// Evaluate derives the calibration score from a resolved layout.
func Evaluate(result *layout.Result, thresholds Thresholds) Score {
	s := Score{}

	if result == nil || len(result.Candidates) == 0 {
		s.AmbiguityRatio = 1
		s.Tier = TierSpeculative
		s.NeedsHumanHint = true
		s.Reasons = append(s.Reasons, "no module candidates detected")
		return s
	}

	s.AmbiguityRatio = result.AmbiguityRatio

	// Confidence combines separation with match quality: a manifest or
	// workspace adapter is stronger evidence than convention scoring.
	separation := 1 - s.AmbiguityRatio
	quality := adapterQuality(result.AdapterUsed)
	s.Confidence = separation * quality

	// Speculative is reserved for the no-candidates case above: detected
	// candidates, however poorly separated, are still evidence.
	switch {
	case s.Confidence >= 0.75:
		s.Tier = TierHigh
	case s.Confidence >= 0.5:
		s.Tier = TierMedium
	default:
		s.Tier = TierLow
	}

	poorSeparation := s.AmbiguityRatio >= thresholds.AmbiguityThreshold
	if poorSeparation {
		s.NeedsHumanHint = true
		s.Reasons = append(s.Reasons, "top candidates are poorly separated")
	}
	if s.Confidence < thresholds.MinConfidence {
		// An applied hint that separated the ranking is the human
		// disambiguation this gate exists to request; asking again
		// would loop forever on small or flat repositories.
		if result.HintApplied && !poorSeparation {
			s.Reasons = append(s.Reasons, "hint matched and separated the ranking")
		} else {
			s.NeedsHumanHint = true
			s.Reasons = append(s.Reasons, "confidence below minimum threshold")
		}
	}
	if result.FallbackReason != "" {
		s.Reasons = append(s.Reasons, result.FallbackReason)
	}

	return s
}

func adapterQuality(adapter string) float64 {
	switch adapter {
	case "manifest", "workspace":
		return 1.0
	case "convention":
		return 0.6
	default:
		return 0.2
	}
}
