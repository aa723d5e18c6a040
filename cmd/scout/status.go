package main

import (
	"os"

	"github.com/spf13/cobra"

	"scout/internal/contract"
	"scout/internal/engine"
	"scout/internal/scan"
	"scout/internal/store"
	"scout/internal/version"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored capability state for a repository",
	Long: `Report what is already known about the target repository without
scanning it: the last capability snapshot, scan graph freshness and run
history. The governance gate still applies; status on a denied target
reveals nothing.`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusDetail is the status line payload.
type statusDetail struct {
	Version      string               `json:"version"`
	RepoName     string               `json:"repoName,omitempty"`
	Fingerprint  string               `json:"fingerprint,omitempty"`
	HasSnapshot  bool                 `json:"hasSnapshot"`
	HasGraph     bool                 `json:"hasGraph"`
	Latest       *store.LatestPointer `json:"latest,omitempty"`
	GraphMetrics *scan.Metrics        `json:"graphMetrics,omitempty"`
	RunsRecorded int                  `json:"runsRecorded"`
	Recent       []store.RunSummary   `json:"recent,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) {
	emitter := newEmitter()

	decision, fp, state, _ := engine.Gate(repoFlag, "status", policyFlag, tokenFlag)
	if state != contract.StateSuccess {
		_ = emitter.Denied(state, decision)
		os.Exit(state.ExitCode())
	}

	detail := statusDetail{Version: version.Full(), RepoName: fp.Name, Fingerprint: fp.Short}

	ws, err := store.OpenWorkspace(fp.Short)
	if err != nil {
		_ = emitter.Status(contract.StateInternalError, map[string]string{"error": err.Error()})
		os.Exit(contract.StateInternalError.ExitCode())
	}

	if record, err := ws.ReadSnapshot(); err == nil && record != nil {
		detail.HasSnapshot = true
		_ = emitter.Pointer(contract.KindCapability, ws.SnapshotPath(), record)
	}
	if latest, err := ws.ReadLatest(); err == nil && latest != nil {
		detail.Latest = latest
	}
	if graph, err := scan.LoadGraph(ws.GraphPath()); err == nil && graph != nil {
		detail.HasGraph = true
		detail.GraphMetrics = &graph.Metrics
	}
	if runs, err := ws.ReadJournal(); err == nil {
		detail.RunsRecorded = len(runs)
	}

	if idx, err := store.LoadGlobalIndex(); err == nil {
		if entry, ok := idx.Entries[fp.Hash]; ok {
			detail.Recent = entry.History
		}
	}

	_ = emitter.Status(contract.StateSuccess, detail)
	os.Exit(0)
}
