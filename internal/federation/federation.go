// Package federation maintains the cross-repository aggregate. It is a
// locally replicated, eventually overwritten index, not a replicated log:
// the JSON index is canonical, a sqlite mirror accelerates keyword
// queries, and writes are gated by a scope check independent of the one
// that allowed the run itself.
package federation

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"scout/internal/paths"
	"scout/internal/store"
	"scout/internal/version"
)

// MaxRuns bounds per-repo run history; oldest records are pruned on
// overflow.
const MaxRuns = 20

// IndexFileName is the canonical federated index file.
const IndexFileName = "index.json"

// JournalFileName is the optional federation journal.
const JournalFileName = "journal.jsonl"

// Entry is the per-repo aggregate in the federated index.
type Entry struct {
	RepoFingerprint string                   `json:"repoFingerprint"`
	RepoName        string                   `json:"repoName"`
	RepoRoot        string                   `json:"repoRoot"`
	Latest          store.CapabilityRecord   `json:"latest"`
	Runs            []store.CapabilityRecord `json:"runs"`
	Producer        version.Triple           `json:"producer"`
	Governance      store.Governance         `json:"governance"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

// Index is the federated index document.
type Index struct {
	Schema  int              `json:"schema"`
	Entries map[string]Entry `json:"entries"`

	dir string
}

// Open loads the federated index from the global-state federation
// directory; absence yields an empty index.
func Open() (*Index, error) {
	dir, err := paths.GetFederationDir()
	if err != nil {
		return nil, err
	}
	idx := &Index{Schema: version.SchemaVersion, Entries: map[string]Entry{}, dir: dir}

	if err := store.ReadJSON(filepath.Join(dir, IndexFileName), idx); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if idx.Entries == nil {
		idx.Entries = map[string]Entry{}
	}
	idx.dir = dir
	return idx, nil
}

// Fold merges one non-denied run into the index. The caller performs the
// federation scope check before calling; Fold itself only aggregates.
func (idx *Index) Fold(record *store.CapabilityRecord) {
	entry, ok := idx.Entries[record.RepoFingerprint]
	if !ok {
		entry = Entry{
			RepoFingerprint: record.RepoFingerprint,
			RepoName:        record.RepoName,
			RepoRoot:        record.RepoRoot,
		}
	}

	entry.RepoName = record.RepoName
	entry.RepoRoot = record.RepoRoot
	entry.Latest = *record
	entry.Runs = append(entry.Runs, *record)
	if len(entry.Runs) > MaxRuns {
		entry.Runs = entry.Runs[len(entry.Runs)-MaxRuns:]
	}
	entry.Producer = record.Producer
	entry.Governance = record.Governance
	entry.UpdatedAt = time.Now().UTC()

	idx.Entries[record.RepoFingerprint] = entry
}

// Save persists the index atomically, appends the journal line for the
// given record, refreshes the per-repo mirror and rebuilds the sqlite
// query mirror. Mirror failures do not fail the write; the JSON index
// remains canonical.
func (idx *Index) Save(record *store.CapabilityRecord) error {
	idx.Schema = version.SchemaVersion
	if err := store.WriteJSONAtomic(filepath.Join(idx.dir, IndexFileName), idx); err != nil {
		return err
	}
	if record != nil {
		if err := store.AppendJournalLine(filepath.Join(idx.dir, JournalFileName), record); err != nil {
			return err
		}
		entry := idx.Entries[record.RepoFingerprint]
		mirrorPath := filepath.Join(idx.dir, "repos", record.RepoFingerprint+".json")
		if err := store.WriteJSONAtomic(mirrorPath, entry); err != nil {
			return err
		}
	}

	_ = idx.rebuildMirror() // best effort; queries fall back to JSON

	return nil
}

// Path returns the canonical index file path.
func (idx *Index) Path() string {
	return filepath.Join(idx.dir, IndexFileName)
}

// List returns the most-recently-seen repos, newest first.
func (idx *Index) List(limit int) []Entry {
	entries := make([]Entry, 0, len(idx.Entries))
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

// Explain retrieves one stored run record by fingerprint and run id.
// Returns nil when either is unknown.
func (idx *Index) Explain(fingerprint, runID string) *store.CapabilityRecord {
	entry, ok := idx.Entries[fingerprint]
	if !ok {
		return nil
	}
	for i := range entry.Runs {
		if entry.Runs[i].RunID == runID {
			return &entry.Runs[i]
		}
	}
	return nil
}
