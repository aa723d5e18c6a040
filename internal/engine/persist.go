package engine

import (
	"path/filepath"

	"github.com/google/uuid"

	"scout/internal/contract"
	"scout/internal/federation"
	"scout/internal/hints"
	"scout/internal/identity"
	"scout/internal/layout"
	"scout/internal/logging"
	"scout/internal/policy"
	"scout/internal/scan"
	"scout/internal/store"
)

// runScan produces the scan graph, preferring wholesale reuse of the
// prior graph when it is fresh, warm and validated. On failure it sets
// the outcome state and returns nil.
func (out *Outcome) runScan(fp *identity.RepoFingerprint, ws *store.Workspace,
	layoutResult *layout.Result, opts Options, logger *logging.Logger) (*scan.Graph, scan.ReuseDecision) {

	out.cache = scan.LoadCache(ws.CachePath())

	if !opts.NoReuse {
		prior, err := scan.LoadGraph(ws.GraphPath())
		if err != nil {
			logger.Warn("prior scan graph unreadable, rescanning", map[string]interface{}{
				"error": err.Error(),
			})
		} else if reused, decision := scan.TryReuse(prior, fp.CanonicalRoot, opts.ReusePolicy, logger); reused != nil {
			return reused, decision
		} else if decision.Reason != "no prior scan graph" {
			logger.Debug("scan graph not reused", map[string]interface{}{
				"reason": decision.Reason,
			})
		}
	}

	eng := scan.NewEngine(fp.CanonicalRoot, fp.Hash, out.cache, scan.Options{
		Budget:  opts.Budget,
		Workers: opts.Workers,
		Logger:  logger,
	})
	graph, err := eng.Run(layoutResult)
	if err != nil {
		out.fail(err)
		return nil, scan.ReuseDecision{}
	}
	return graph, scan.ReuseDecision{Reason: "full scan"}
}

// persistWorkspace writes the workspace tier: graph artifact, incremental
// cache, snapshot and journal. The previous graph is archived when a new
// fingerprint supersedes it.
func (out *Outcome) persistWorkspace(ws *store.Workspace, record *store.CapabilityRecord,
	graph *scan.Graph, runUUID string) error {

	if !graph.Metrics.SmartReused {
		if prior, err := scan.LoadGraph(ws.GraphPath()); err == nil && prior != nil && prior.Fingerprint != graph.Fingerprint {
			if err := scan.ArchiveGraph(ws.Dir); err != nil {
				return err
			}
		}
		if err := scan.SaveGraph(graph, ws.GraphPath()); err != nil {
			return err
		}
	}
	if err := out.cache.Save(ws.CachePath()); err != nil {
		return err
	}
	if err := ws.WriteSnapshot(record); err != nil {
		return err
	}
	if err := ws.WriteLatest(record); err != nil {
		return err
	}
	return ws.AppendRun(record, runUUID)
}

func (out *Outcome) persistGlobal(record *store.CapabilityRecord) error {
	idx, err := store.LoadGlobalIndex()
	if err != nil {
		return err
	}
	idx.Fold(record)
	return idx.Save()
}

// persistFederation folds the record into the federated index, behind a
// scope check independent of the gate that allowed the run. A blocked
// write is skipped, or terminal in strict mode.
func (out *Outcome) persistFederation(decision policy.Decision, record *store.CapabilityRecord,
	strict bool, logger *logging.Logger) contract.State {

	if !decision.AllowsCapability(policy.ScopeFederationWrite) {
		if strict {
			return contract.StateFederationScopeBlock
		}
		logger.Warn("federation index write blocked by token scope", nil)
		return contract.StateSuccess
	}

	idx, err := federation.Open()
	if err != nil {
		logger.Error("federated index unavailable", map[string]interface{}{"error": err.Error()})
		return contract.StateSuccess
	}
	idx.Fold(record)
	if err := idx.Save(record); err != nil {
		logger.Error("federated index write failed", map[string]interface{}{"error": err.Error()})
		return contract.StateSuccess
	}
	out.FederationPath = idx.Path()
	return contract.StateSuccess
}

// emitHintBundle writes a suggestion bundle derived from the current
// candidate ranking. Failures degrade to a log line; the run itself has
// already produced its result.
func (out *Outcome) emitHintBundle(fp *identity.RepoFingerprint, ws *store.Workspace,
	layoutResult *layout.Result, logger *logging.Logger) {

	payload := hints.Suggest(layoutResult.Candidates, 3)
	bundle := hints.New(fp.Hash, payload, 0)
	path := ws.HintBundlePath(uuid.NewString())
	if err := bundle.Save(path); err != nil {
		logger.Error("hint bundle write failed", map[string]interface{}{"error": err.Error()})
		return
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	out.HintBundlePath = path
}
