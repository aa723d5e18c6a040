// Package layout detects project layout and ranks module-root candidates.
// A priority-ordered adapter chain proposes candidates with evidence; the
// resolver merges, deduplicates and scores the result, recording which
// adapter decided the layout and why any fallback occurred.
package layout

import (
	"strings"

	"scout/internal/logging"
)

// Adapter proposes zero or more module candidates for a repository root.
type Adapter interface {
	Name() string
	Detect(repoRoot string) ([]*Candidate, error)
}

// Hints carries identity hints that bias ranking for the current run only.
type Hints struct {
	Keywords  []string `json:"keywords,omitempty"`
	PathHints []string `json:"pathHints,omitempty"`
}

// Result is the resolved layout.
type Result struct {
	Candidates     []*Candidate `json:"candidates"`
	AdapterUsed    string       `json:"adapterUsed"`
	FallbackReason string       `json:"fallbackReason,omitempty"`
	AmbiguityRatio float64      `json:"ambiguityRatio"`
	HintApplied    bool         `json:"hintApplied,omitempty"`
}

// hint evidence weights
const (
	keywordHintWeight = 2.5
	pathHintWeight    = 3.0
)

// defaultChain is the adapter priority order: workspace layouts beat a
// root manifest (a workspace root's own manifest describes the umbrella,
// not a module), convention detection is the last resort.
func defaultChain() []Adapter {
	return []Adapter{
		workspaceAdapter{},
		manifestAdapter{},
		conventionAdapter{},
	}
}

// Resolve runs the adapter chain against a repository root.
func Resolve(repoRoot string, hints *Hints, logger *logging.Logger) (*Result, error) {
	result := &Result{}
	var all []*Candidate

	for _, adapter := range defaultChain() {
		candidates, err := adapter.Detect(repoRoot)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			continue
		}
		if result.AdapterUsed == "" {
			result.AdapterUsed = adapter.Name()
		}
		all = append(all, candidates...)
		logger.Debug("Adapter proposed candidates", map[string]interface{}{
			"adapter": adapter.Name(),
			"count":   len(candidates),
		})
	}

	if result.AdapterUsed == "" {
		result.AdapterUsed = "none"
		result.FallbackReason = "no adapter produced candidates"
		return result, nil
	}
	if result.AdapterUsed == "convention" {
		result.FallbackReason = "no manifest or workspace layout detected"
	}

	merged := mergeCandidates(all)

	if hints != nil {
		result.HintApplied = applyHints(merged, hints)
		sortCandidates(merged)
	}

	result.Candidates = merged
	result.AmbiguityRatio = ambiguityRatio(merged)
	return result, nil
}

// applyHints biases candidate scores with identity hints. The bias lives
// only in this run's ranking; nothing is persisted into the target repo.
func applyHints(candidates []*Candidate, hints *Hints) bool {
	applied := false
	for _, c := range candidates {
		for _, kw := range hints.Keywords {
			if kw == "" {
				continue
			}
			if containsFold(c.Name, kw) || containsFold(c.Root, kw) {
				c.addEvidence("keyword-hint", kw, keywordHintWeight)
				applied = true
			}
		}
		for _, ph := range hints.PathHints {
			if ph == "" {
				continue
			}
			if matchesPathHint(c.Root, ph) {
				c.addEvidence("path-hint", ph, pathHintWeight)
				applied = true
			}
		}
	}
	return applied
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matchesPathHint(root, hint string) bool {
	root = strings.Trim(strings.ToLower(root), "/")
	hint = strings.Trim(strings.ToLower(hint), "/")
	return root == hint || strings.HasPrefix(root, hint+"/") || strings.HasSuffix(root, "/"+hint)
}
