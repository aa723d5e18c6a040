package store

import (
	"os"
	"sort"
	"time"

	"scout/internal/paths"
	"scout/internal/version"
)

// MaxRunHistory bounds per-repo run history in the global index; the
// oldest entries are pruned on overflow.
const MaxRunHistory = 20

// RunSummary is one bounded-history entry.
type RunSummary struct {
	RunID      string    `json:"runId"`
	Timestamp  time.Time `json:"timestamp"`
	Command    string    `json:"command"`
	Confidence float64   `json:"confidence"`
	LimitsHit  bool      `json:"limitsHit"`
}

// IndexEntry is the per-repo aggregate in the global capability index.
type IndexEntry struct {
	RepoFingerprint string         `json:"repoFingerprint"`
	RepoName        string         `json:"repoName"`
	RepoRoot        string         `json:"repoRoot"`
	Latest          RunSummary     `json:"latest"`
	History         []RunSummary   `json:"history"`
	Producer        version.Triple `json:"producer"`
	Governance      Governance     `json:"governance"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// GlobalIndex is the shared capability index. Concurrent writers replace
// the whole file atomically; last-writer-wins at entry granularity is
// acceptable, structural corruption is not.
type GlobalIndex struct {
	Schema  int                   `json:"schema"`
	Entries map[string]IndexEntry `json:"entries"`
}

// LoadGlobalIndex reads the global index; an absent file yields an empty
// index.
func LoadGlobalIndex() (*GlobalIndex, error) {
	path, err := paths.GetGlobalIndexPath()
	if err != nil {
		return nil, err
	}
	var idx GlobalIndex
	if err := ReadJSON(path, &idx); err != nil {
		if os.IsNotExist(err) {
			return &GlobalIndex{Schema: version.SchemaVersion, Entries: map[string]IndexEntry{}}, nil
		}
		return nil, err
	}
	if idx.Entries == nil {
		idx.Entries = map[string]IndexEntry{}
	}
	return &idx, nil
}

// Fold merges one run record into the index, maintaining the latest
// pointer and the bounded history.
func (idx *GlobalIndex) Fold(record *CapabilityRecord) {
	summary := RunSummary{
		RunID:      record.RunID,
		Timestamp:  record.Timestamp,
		Command:    record.Command,
		Confidence: record.Metrics.Confidence,
		LimitsHit:  record.Metrics.LimitsHit,
	}

	entry, ok := idx.Entries[record.RepoFingerprint]
	if !ok {
		entry = IndexEntry{
			RepoFingerprint: record.RepoFingerprint,
			RepoName:        record.RepoName,
			RepoRoot:        record.RepoRoot,
		}
	}

	entry.RepoName = record.RepoName
	entry.RepoRoot = record.RepoRoot
	entry.Latest = summary
	entry.History = append(entry.History, summary)
	if len(entry.History) > MaxRunHistory {
		entry.History = entry.History[len(entry.History)-MaxRunHistory:]
	}
	entry.Producer = record.Producer
	entry.Governance = record.Governance
	entry.UpdatedAt = time.Now().UTC()

	idx.Entries[record.RepoFingerprint] = entry
}

// Save writes the index atomically.
func (idx *GlobalIndex) Save() error {
	path, err := paths.GetGlobalIndexPath()
	if err != nil {
		return err
	}
	idx.Schema = version.SchemaVersion
	return WriteJSONAtomic(path, idx)
}

// RecentEntries returns entries ordered most-recently-updated first.
func (idx *GlobalIndex) RecentEntries(limit int) []IndexEntry {
	entries := make([]IndexEntry, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
		}
		return entries[i].RepoFingerprint < entries[j].RepoFingerprint
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
