package layout

import (
	"sort"
)

// Evidence is one reason a directory was proposed as a module root.
type Evidence struct {
	// Source names the signal ("manifest", "workspace-member", "index-file",
	// "semantic-name", "file-density", "keyword-hint", "path-hint")
	Source string `json:"source"`
	// Detail is the concrete match, e.g. the manifest filename
	Detail string `json:"detail,omitempty"`
	// Weight is the score contribution of this signal
	Weight float64 `json:"weight"`
}

// Candidate is one ranked module-root proposal.
type Candidate struct {
	Name     string     `json:"name"`
	Root     string     `json:"root"` // repo-relative, slash-separated, "." for repo root
	Language string     `json:"language,omitempty"`
	Adapter  string     `json:"adapter"`
	Evidence []Evidence `json:"evidence"`
	Score    float64    `json:"score"`
}

// addEvidence appends a signal and folds its weight into the score.
func (c *Candidate) addEvidence(source, detail string, weight float64) {
	c.Evidence = append(c.Evidence, Evidence{Source: source, Detail: detail, Weight: weight})
	c.Score += weight
}

// mergeCandidates deduplicates by root path. When two adapters propose the
// same root, evidence is concatenated and the higher-priority adapter's
// name wins (candidates arrive in adapter priority order).
func mergeCandidates(candidates []*Candidate) []*Candidate {
	byRoot := make(map[string]*Candidate)
	var order []string

	for _, c := range candidates {
		existing, ok := byRoot[c.Root]
		if !ok {
			byRoot[c.Root] = c
			order = append(order, c.Root)
			continue
		}
		existing.Evidence = append(existing.Evidence, c.Evidence...)
		existing.Score += c.Score
		if existing.Language == "" {
			existing.Language = c.Language
		}
	}

	merged := make([]*Candidate, 0, len(order))
	for _, root := range order {
		merged = append(merged, byRoot[root])
	}
	sortCandidates(merged)
	return merged
}

// sortCandidates orders by score descending, then by root for stability.
func sortCandidates(candidates []*Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Root < candidates[j].Root
	})
}

// ambiguityRatio measures how poorly separated the top two candidates are.
// 0 means a single clear winner, 1 means the top two are tied.
func ambiguityRatio(candidates []*Candidate) float64 {
	if len(candidates) < 2 {
		return 0
	}
	top := candidates[0].Score
	second := candidates[1].Score
	if top <= 0 {
		return 1
	}
	return second / top
}
