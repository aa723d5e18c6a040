package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"scout/internal/paths"
)

// Workspace file names.
const (
	SnapshotFileName = "capability.json"
	JournalFileName  = "journal.jsonl"
	LatestFileName   = "latest.json"
	runsDirName      = "runs"
)

// LatestPointer names the most recent run without duplicating the full
// snapshot. Peer tools poll this small file instead of replaying the
// journal.
type LatestPointer struct {
	RunID            string    `json:"runId"`
	Timestamp        time.Time `json:"timestamp"`
	SnapshotPath     string    `json:"snapshotPath"`
	GraphFingerprint string    `json:"graphFingerprint"`
}

// Workspace is the per-repo-fingerprint persistence tier.
type Workspace struct {
	Dir string
}

// OpenWorkspace resolves (but does not create) the workspace directory
// for a fingerprint. Creation happens on first write, which can only
// occur after the governance gate allowed the command.
func OpenWorkspace(fingerprint string) (*Workspace, error) {
	dir, err := paths.GetWorkspaceDir(fingerprint)
	if err != nil {
		return nil, err
	}
	return &Workspace{Dir: dir}, nil
}

// SnapshotPath returns the capability snapshot path.
func (w *Workspace) SnapshotPath() string {
	return filepath.Join(w.Dir, SnapshotFileName)
}

// JournalPath returns the append-only journal path.
func (w *Workspace) JournalPath() string {
	return filepath.Join(w.Dir, JournalFileName)
}

// LatestPath returns the latest-run pointer path.
func (w *Workspace) LatestPath() string {
	return filepath.Join(w.Dir, LatestFileName)
}

// RunMetaPath returns the per-run metadata path for a run UUID.
func (w *Workspace) RunMetaPath(runUUID string) string {
	return filepath.Join(w.Dir, runsDirName, runUUID+".json")
}

// GraphPath returns the scan graph artifact path.
func (w *Workspace) GraphPath() string {
	return filepath.Join(w.Dir, "scan-graph.json.zst")
}

// CachePath returns the incremental cache path.
func (w *Workspace) CachePath() string {
	return filepath.Join(w.Dir, "scan-cache.json")
}

// HintBundlePath returns the path of an emitted hint bundle for a run.
func (w *Workspace) HintBundlePath(runUUID string) string {
	return filepath.Join(w.Dir, "hints-"+runUUID+".json")
}

// WriteSnapshot persists the capability snapshot atomically.
func (w *Workspace) WriteSnapshot(record *CapabilityRecord) error {
	return WriteJSONAtomic(w.SnapshotPath(), record)
}

// ReadSnapshot loads the latest capability snapshot; nil when absent.
func (w *Workspace) ReadSnapshot() (*CapabilityRecord, error) {
	var record CapabilityRecord
	if err := ReadJSON(w.SnapshotPath(), &record); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// AppendRun appends the record to the journal and writes its per-run
// metadata file.
func (w *Workspace) AppendRun(record *CapabilityRecord, runUUID string) error {
	if err := AppendJournalLine(w.JournalPath(), record); err != nil {
		return err
	}
	return WriteJSONAtomic(w.RunMetaPath(runUUID), record)
}

// WriteLatest replaces the latest-run pointer.
func (w *Workspace) WriteLatest(record *CapabilityRecord) error {
	return WriteJSONAtomic(w.LatestPath(), LatestPointer{
		RunID:            record.RunID,
		Timestamp:        record.Timestamp,
		SnapshotPath:     w.SnapshotPath(),
		GraphFingerprint: record.GraphFingerprint,
	})
}

// ReadLatest loads the latest-run pointer; nil when absent.
func (w *Workspace) ReadLatest() (*LatestPointer, error) {
	var p LatestPointer
	if err := ReadJSON(w.LatestPath(), &p); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ReadJournal returns all parseable journal records in append order.
// A torn trailing line (crashed writer) is skipped, not fatal.
func (w *Workspace) ReadJournal() ([]CapabilityRecord, error) {
	f, err := os.Open(w.JournalPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close() //nolint:errcheck // best effort cleanup

	var records []CapabilityRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record CapabilityRecord
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, scanner.Err()
}
