package scan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"scout/internal/version"
)

// GraphFileName is the workspace filename of the latest scan graph.
// Superseded graphs are renamed aside, never rewritten.
const GraphFileName = "scan-graph.json.zst"

// SaveGraph persists a sealed graph zstd-compressed and atomically
// (temp + rename). Readers never observe a torn file.
func SaveGraph(g *Graph, path string) error {
	if g.Fingerprint == "" {
		return fmt.Errorf("refusing to persist unsealed scan graph")
	}

	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshaling scan graph: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating workspace directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating scan graph temp file: %w", err)
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing scan graph: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("flushing scan graph: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing scan graph: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming scan graph: %w", err)
	}
	return nil
}

// LoadGraph reads a persisted graph. Returns nil without error when the
// file does not exist. A schema mismatch is reported so the caller can
// distinguish producer drift from absence.
func LoadGraph(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening scan graph: %w", err)
	}
	defer f.Close() //nolint:errcheck // best effort cleanup

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompressing scan graph: %w", err)
	}

	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing scan graph: %w", err)
	}
	if g.Schema != version.SchemaVersion {
		return nil, fmt.Errorf("scan graph schema %d does not match supported schema %d", g.Schema, version.SchemaVersion)
	}
	return &g, nil
}

// ArchiveGraph moves the current graph aside before a newer one replaces
// it. The archived copy keeps its compressed form and fingerprint.
func ArchiveGraph(workspaceDir string) error {
	current := filepath.Join(workspaceDir, GraphFileName)
	g, err := LoadGraph(current)
	if err != nil || g == nil {
		return err
	}
	archived := filepath.Join(workspaceDir, fmt.Sprintf("scan-graph-%s.json.zst", g.Fingerprint[:12]))
	if _, err := os.Stat(archived); err == nil {
		return nil // already archived
	}
	return os.Rename(current, archived)
}
