// Package scan walks candidate module roots, extracts structural facts
// and maintains the incremental file cache. Extraction is heuristic
// pattern recognition of framework idioms, not language parsing.
package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"scout/internal/layout"
	"scout/internal/version"
)

// Endpoint is one recognized route/endpoint declaration.
type Endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	File   string `json:"file"`
	Line   int    `json:"line"`
	// Source is "direct" for a literal framework match or "indirect" when
	// a custom marker wrapping a framework mapping was resolved
	Source string `json:"source"`
	// Framework names the recognized idiom ("net/http", "gin", "express",
	// "flask", "spring", "marker:<name>")
	Framework string `json:"framework,omitempty"`
}

// FileFacts is everything extracted from one source file. Cached facts
// must equal what a fresh read would produce, or the cache entry is
// unsound and gets invalidated.
type FileFacts struct {
	Path       string       `json:"path"`
	Language   string       `json:"language,omitempty"`
	Lines      int          `json:"lines"`
	Classes    []string     `json:"classes,omitempty"`
	Endpoints  []Endpoint   `json:"endpoints,omitempty"`
	MarkerDefs []MarkerDef  `json:"markerDefs,omitempty"`
	MarkerUses []MarkerUse  `json:"markerUses,omitempty"`
	Resources  []string     `json:"resources,omitempty"`
}

// Metrics summarizes one scan pass.
type Metrics struct {
	FilesScanned   int     `json:"filesScanned"`
	FilesTotal     int     `json:"filesTotal"`
	CacheHits      int     `json:"cacheHits"`
	CacheMisses    int     `json:"cacheMisses"`
	CacheHitRatio  float64 `json:"cacheHitRatio"`
	LimitsHit      bool    `json:"limitsHit"`
	LimitReason    string  `json:"limitReason,omitempty"`
	DurationMillis int64   `json:"durationMillis"`
	SmartReused    bool    `json:"smartReused"`
}

// Graph is the versioned snapshot of extracted facts. Immutable once
// written; a newer run supersedes it, never mutates it in place.
type Graph struct {
	Schema      int                 `json:"schema"`
	Producer    version.Triple      `json:"producer"`
	Fingerprint string              `json:"fingerprint"`
	RepoHash    string              `json:"repoHash"`
	CreatedAt   time.Time           `json:"createdAt"`
	Layout      *layout.Result      `json:"layout"`
	Files       []FileFacts         `json:"files"`
	Endpoints   []Endpoint          `json:"endpoints"`
	Metrics     Metrics             `json:"metrics"`
}

// EndpointsTotal counts all endpoints in the graph.
func (g *Graph) EndpointsTotal() int {
	return len(g.Endpoints)
}

// ComputeFingerprint derives the graph fingerprint from its facts. The
// fingerprint covers files and endpoints but not metrics, so a cache-hit
// rescan of an unchanged tree reproduces the same fingerprint.
func (g *Graph) ComputeFingerprint() string {
	type fingerprintBody struct {
		RepoHash  string      `json:"repoHash"`
		Files     []FileFacts `json:"files"`
		Endpoints []Endpoint  `json:"endpoints"`
	}

	files := make([]FileFacts, len(g.Files))
	copy(files, g.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	endpoints := make([]Endpoint, len(g.Endpoints))
	copy(endpoints, g.Endpoints)
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].File != endpoints[j].File {
			return endpoints[i].File < endpoints[j].File
		}
		return endpoints[i].Line < endpoints[j].Line
	})

	data, err := json.Marshal(fingerprintBody{
		RepoHash:  g.RepoHash,
		Files:     files,
		Endpoints: endpoints,
	})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Seal stamps fingerprint, schema and producer. Called once before the
// graph is persisted.
func (g *Graph) Seal() {
	g.Schema = version.SchemaVersion
	g.Producer = version.Current()
	g.Fingerprint = g.ComputeFingerprint()
}
