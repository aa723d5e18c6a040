package federation

import (
	"sort"
	"strings"
)

// QueryOptions narrows and orders federated query results.
type QueryOptions struct {
	Keyword          string
	Endpoint         string
	Limit            int
	IncludeLimitsHit bool
}

// Match is one ranked query result with the signals that placed it.
type Match struct {
	Entry         Entry    `json:"entry"`
	EndpointMatch bool     `json:"endpointMatch"`
	KeywordMatch  bool     `json:"keywordMatch"`
	Reasons       []string `json:"reasons"`
}

// Query ranks repos against the given filters. Ordering is ordinal:
// endpoint match beats keyword match, then recency, then lower
// ambiguity, then higher confidence, with the fingerprint breaking any
// remaining tie so results are stable across runs.
func (idx *Index) Query(opts QueryOptions) []Match {
	candidates := idx.Entries
	if opts.Keyword != "" || opts.Endpoint != "" {
		if fps, ok := idx.MirrorCandidates(opts); ok {
			candidates = make(map[string]Entry, len(fps))
			for _, fp := range fps {
				if entry, present := idx.Entries[fp]; present {
					candidates[fp] = entry
				}
			}
		}
	}

	var matches []Match
	for _, entry := range candidates {
		if entry.Latest.Metrics.LimitsHit && !opts.IncludeLimitsHit {
			continue
		}
		m := Match{Entry: entry}

		if opts.Endpoint != "" {
			m.EndpointMatch = matchesEndpoint(entry, opts.Endpoint)
			if m.EndpointMatch {
				m.Reasons = append(m.Reasons, "endpoint match: "+opts.Endpoint)
			}
		}
		if opts.Keyword != "" {
			m.KeywordMatch = matchesKeyword(entry, opts.Keyword)
			if m.KeywordMatch {
				m.Reasons = append(m.Reasons, "keyword match: "+opts.Keyword)
			}
		}

		// With filters present, a repo matching none of them is out.
		if (opts.Endpoint != "" || opts.Keyword != "") && !m.EndpointMatch && !m.KeywordMatch {
			continue
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		return rankLess(matches[i], matches[j])
	})
	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches
}

func rankLess(a, b Match) bool {
	if a.EndpointMatch != b.EndpointMatch {
		return a.EndpointMatch
	}
	if a.KeywordMatch != b.KeywordMatch {
		return a.KeywordMatch
	}
	if !a.Entry.UpdatedAt.Equal(b.Entry.UpdatedAt) {
		return a.Entry.UpdatedAt.After(b.Entry.UpdatedAt)
	}
	if a.Entry.Latest.Metrics.AmbiguityRatio != b.Entry.Latest.Metrics.AmbiguityRatio {
		return a.Entry.Latest.Metrics.AmbiguityRatio < b.Entry.Latest.Metrics.AmbiguityRatio
	}
	if a.Entry.Latest.Metrics.Confidence != b.Entry.Latest.Metrics.Confidence {
		return a.Entry.Latest.Metrics.Confidence > b.Entry.Latest.Metrics.Confidence
	}
	return a.Entry.RepoFingerprint < b.Entry.RepoFingerprint
}

func matchesEndpoint(entry Entry, endpoint string) bool {
	needle := strings.ToLower(endpoint)
	for _, ep := range entry.Latest.Endpoints {
		if strings.Contains(strings.ToLower(ep), needle) {
			return true
		}
	}
	return false
}

func matchesKeyword(entry Entry, keyword string) bool {
	needle := strings.ToLower(keyword)
	if strings.Contains(strings.ToLower(entry.RepoName), needle) {
		return true
	}
	for _, kw := range entry.Latest.Keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	return false
}
