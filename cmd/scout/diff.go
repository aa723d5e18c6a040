package main

import (
	"os"
	"sort"

	"github.com/spf13/cobra"

	"scout/internal/contract"
	"scout/internal/engine"
	"scout/internal/guard"
	"scout/internal/layout"
	"scout/internal/scan"
	"scout/internal/store"
)

var diffWorkers int

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare the stored scan graph against the repository's current state",
	Long: `Rescan the target repository without persisting anything and compare
the result against the stored scan graph: files added, removed or changed,
and endpoints gained or lost. With --strict, any divergence is a non-zero
exit.`,
	Run: runDiff,
}

func init() {
	diffCmd.Flags().IntVar(&diffWorkers, "workers", 4, "Parallel extraction workers")
	rootCmd.AddCommand(diffCmd)
}

// graphDiff is the diff payload.
type graphDiff struct {
	HasPrior           bool     `json:"hasPrior"`
	PriorFingerprint   string   `json:"priorFingerprint,omitempty"`
	CurrentFingerprint string   `json:"currentFingerprint"`
	Mismatch           bool     `json:"mismatch"`
	FilesAdded         []string `json:"filesAdded,omitempty"`
	FilesRemoved       []string `json:"filesRemoved,omitempty"`
	FilesChanged       []string `json:"filesChanged,omitempty"`
	EndpointsAdded     []string `json:"endpointsAdded,omitempty"`
	EndpointsRemoved   []string `json:"endpointsRemoved,omitempty"`
}

func runDiff(cmd *cobra.Command, args []string) {
	emitter := newEmitter()
	logger := newLogger()

	decision, fp, state, _ := engine.Gate(repoFlag, "diff", policyFlag, tokenFlag)
	if state != contract.StateSuccess {
		_ = emitter.Denied(state, decision)
		os.Exit(state.ExitCode())
	}

	g := guard.New(fp.CanonicalRoot, nil)
	if err := g.Arm(); err != nil {
		failInternal(emitter, err)
	}

	ws, err := store.OpenWorkspace(fp.Short)
	if err != nil {
		failInternal(emitter, err)
	}
	prior, err := scan.LoadGraph(ws.GraphPath())
	if err != nil {
		failInternal(emitter, err)
	}

	layoutResult, err := layout.Resolve(fp.CanonicalRoot, nil, logger)
	if err != nil {
		failInternal(emitter, err)
	}

	// Fresh scan with a throwaway cache; diff never writes state.
	eng := scan.NewEngine(fp.CanonicalRoot, fp.Hash, scan.NewCache(), scan.Options{
		Workers: diffWorkers,
		Logger:  logger,
	})
	current, err := eng.Run(layoutResult)
	if err != nil {
		failInternal(emitter, err)
	}

	diff := compareGraphs(prior, current)

	if violations, err := g.Verify(); err == nil && len(violations) > 0 {
		_ = emitter.Status(contract.StateReadOnlyViolation, violations)
		os.Exit(contract.StateReadOnlyViolation.ExitCode())
	}

	state = contract.StateSuccess
	if diff.Mismatch && strictFlag {
		state = contract.StateGraphMismatch
	}
	_ = emitter.Status(state, diff)
	os.Exit(state.ExitCode())
}

func failInternal(emitter *contract.Emitter, err error) {
	_ = emitter.Status(contract.StateInternalError, map[string]string{"error": err.Error()})
	os.Exit(contract.StateInternalError.ExitCode())
}

func compareGraphs(prior, current *scan.Graph) *graphDiff {
	diff := &graphDiff{CurrentFingerprint: current.Fingerprint}
	if prior == nil {
		return diff
	}
	diff.HasPrior = true
	diff.PriorFingerprint = prior.Fingerprint
	diff.Mismatch = prior.Fingerprint != current.Fingerprint

	priorFiles := map[string]scan.FileFacts{}
	for _, f := range prior.Files {
		priorFiles[f.Path] = f
	}
	currentFiles := map[string]scan.FileFacts{}
	for _, f := range current.Files {
		currentFiles[f.Path] = f
	}

	for path, cf := range currentFiles {
		pf, ok := priorFiles[path]
		if !ok {
			diff.FilesAdded = append(diff.FilesAdded, path)
			continue
		}
		if pf.Lines != cf.Lines || len(pf.Endpoints) != len(cf.Endpoints) ||
			len(pf.Classes) != len(cf.Classes) {
			diff.FilesChanged = append(diff.FilesChanged, path)
		}
	}
	for path := range priorFiles {
		if _, ok := currentFiles[path]; !ok {
			diff.FilesRemoved = append(diff.FilesRemoved, path)
		}
	}

	priorEndpoints := endpointSet(prior)
	currentEndpoints := endpointSet(current)
	for ep := range currentEndpoints {
		if !priorEndpoints[ep] {
			diff.EndpointsAdded = append(diff.EndpointsAdded, ep)
		}
	}
	for ep := range priorEndpoints {
		if !currentEndpoints[ep] {
			diff.EndpointsRemoved = append(diff.EndpointsRemoved, ep)
		}
	}

	sort.Strings(diff.FilesAdded)
	sort.Strings(diff.FilesRemoved)
	sort.Strings(diff.FilesChanged)
	sort.Strings(diff.EndpointsAdded)
	sort.Strings(diff.EndpointsRemoved)
	return diff
}

func endpointSet(g *scan.Graph) map[string]bool {
	set := map[string]bool{}
	for _, ep := range g.Endpoints {
		set[ep.Method+" "+ep.Path] = true
	}
	return set
}
