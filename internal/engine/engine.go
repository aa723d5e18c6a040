// Package engine sequences one discovery run: governance gate, read-only
// guard, layout resolution, scan or reuse, calibration, hint handling,
// persistence, guard verification. Each stage either advances or collapses
// the run into a terminal state; the command layer only translates the
// outcome into machine lines and an exit code.
package engine

import (
	"time"

	"github.com/google/uuid"

	"scout/internal/calibrate"
	"scout/internal/contract"
	"scout/internal/errors"
	"scout/internal/guard"
	"scout/internal/hints"
	"scout/internal/identity"
	"scout/internal/layout"
	"scout/internal/logging"
	"scout/internal/paths"
	"scout/internal/policy"
	"scout/internal/scan"
	"scout/internal/store"
	"scout/internal/version"
)

// Options configures one run.
type Options struct {
	TargetRoot string
	Command    string

	PolicyPath string
	Token      string

	HintPath           string
	AllowCrossRepoHint bool

	// Strict escalates soft degradations (budget truncation, low
	// confidence, blocked optional writes) into terminal states.
	Strict bool

	Budget      scan.Budget
	Workers     int
	Thresholds  calibrate.Thresholds
	ReusePolicy scan.ReusePolicy
	NoReuse     bool

	Logger *logging.Logger
}

// Outcome is everything the command layer needs to emit the contract.
type Outcome struct {
	State    contract.State
	Decision policy.Decision
	Err      error

	Fingerprint *identity.RepoFingerprint
	Workspace   *store.Workspace
	Layout      *layout.Result
	Graph       *scan.Graph
	Score       calibrate.Score
	Record      *store.CapabilityRecord

	Reuse      scan.ReuseDecision
	HintEffect *hints.Effectiveness
	// HintBundlePath is set when a suggestion bundle was written
	HintBundlePath string
	// FederationPath is set when the run folded into the federated index
	FederationPath string
	Violations     []guard.Violation

	cache *scan.Cache
}

// DenyState maps a gate refusal onto its terminal state.
func DenyState(reason policy.Reason) contract.State {
	switch reason {
	case policy.ReasonDisabled:
		return contract.StatePolicyDisabled
	case policy.ReasonDenyList:
		return contract.StateDenyListMatch
	case policy.ReasonAllowList:
		return contract.StateAllowListMiss
	case policy.ReasonParseError:
		return contract.StatePolicyParseError
	}
	return contract.StateInternalError
}

// Gate loads the policy and evaluates it for a target root. Used both by
// the full pipeline and by read-only commands that still must be gated.
// No filesystem write happens here or before it.
func Gate(targetRoot, command, policyPath, token string) (policy.Decision, *identity.RepoFingerprint, contract.State, error) {
	source := policy.ResolveSource(policyPath)
	pol, err := policy.Load(source)
	if err != nil {
		d := policy.Decision{Command: command, Reason: policy.ReasonParseError}
		return d, nil, contract.StatePolicyParseError, err
	}

	fp, err := identity.Compute(targetRoot)
	if err != nil {
		d := policy.Decision{Command: command, Reason: policy.ReasonDenyList}
		return d, nil, contract.StateDenyListMatch,
			errors.New(errors.PermissionDenied, "target root cannot be resolved", err)
	}

	decision := policy.Evaluate(pol, fp.CanonicalRoot, command, token)
	if !decision.Allowed {
		return decision, fp, DenyState(decision.Reason), nil
	}
	return decision, fp, contract.StateSuccess, nil
}

// Run executes the full pipeline. It returns rather than exits; the
// caller owns emission and process termination.
func Run(opts Options) *Outcome {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
	}
	if opts.Thresholds == (calibrate.Thresholds{}) {
		opts.Thresholds = calibrate.DefaultThresholds()
	}
	if opts.ReusePolicy == (scan.ReusePolicy{}) {
		opts.ReusePolicy = scan.DefaultReusePolicy()
	}

	out := &Outcome{State: contract.StateSuccess}
	started := time.Now()

	decision, fp, state, err := Gate(opts.TargetRoot, opts.Command, opts.PolicyPath, opts.Token)
	out.Decision = decision
	out.Fingerprint = fp
	if state != contract.StateSuccess {
		out.State = state
		out.Err = err
		return out
	}

	logger.Info("governance gate passed", map[string]interface{}{
		"repo":   fp.Name,
		"reason": string(decision.Reason),
	})

	g := guard.New(fp.CanonicalRoot, nil)
	if err := g.Arm(); err != nil {
		return out.fail(err)
	}

	ws, err := store.OpenWorkspace(fp.Short)
	if err != nil {
		return out.fail(err)
	}
	// The workspace must live outside the guarded tree; persisting into
	// the target repository would trip the read-only contract this run
	// just armed.
	if paths.IsWithinRepo(ws.Dir, fp.CanonicalRoot) {
		return out.fail(errors.New(errors.ConfigError,
			"state directory lies inside the target repository", nil))
	}
	out.Workspace = ws

	// Hint bundle verification happens before resolution so a rejected
	// bundle provably biased nothing.
	var bundle *hints.Bundle
	if opts.HintPath != "" {
		bundle, err = hints.Load(opts.HintPath)
		if err == nil {
			err = bundle.Verify(hints.VerifyOptions{
				RepoFingerprint: fp.Hash,
				AllowCrossRepo:  opts.AllowCrossRepoHint,
			})
		}
		if err != nil {
			out.State = contract.StateHintRejected
			out.Err = err
			return out
		}
	}

	baseLayout, err := layout.Resolve(fp.CanonicalRoot, nil, logger)
	if err != nil {
		return out.fail(err)
	}
	layoutResult := baseLayout
	if bundle != nil {
		hinted, err := layout.Resolve(fp.CanonicalRoot, bundle.ToLayoutHints(), logger)
		if err != nil {
			return out.fail(err)
		}
		layoutResult = hinted
		baseScore := calibrate.Evaluate(baseLayout, opts.Thresholds)
		hintedScore := calibrate.Evaluate(hinted, opts.Thresholds)
		effect := hints.MeasureEffectiveness(baseScore.Confidence, hintedScore.Confidence)
		out.HintEffect = &effect
	}
	out.Layout = layoutResult

	graph, reuse := out.runScan(fp, ws, layoutResult, opts, logger)
	if graph == nil {
		return out // runScan already set the failure state
	}
	out.Graph = graph
	out.Reuse = reuse

	score := calibrate.Evaluate(layoutResult, opts.Thresholds)
	out.Score = score

	// Low-confidence runs emit a suggestion bundle so the next run can be
	// hinted. Blocked by token scope, in strict mode terminally.
	hintEmitted := false
	if score.NeedsHumanHint {
		if decision.AllowsCapability(policy.ScopeHintsWrite) {
			hintEmitted = true
		} else if opts.Strict {
			out.State = contract.StateHintScopeBlock
			out.Err = errors.New(errors.ScopeBlock, "token scope blocks hint bundle write", nil)
			return out
		} else {
			logger.Warn("hint bundle write blocked by token scope", nil)
		}
	}

	if opts.Strict && score.NeedsHumanHint {
		// The gate fires after the emission decision so a strict gate
		// failure still leaves a suggestion behind.
		if hintEmitted {
			out.emitHintBundle(fp, ws, layoutResult, logger)
		}
		out.State = contract.StateCalibrationGate
		out.Err = errors.New(errors.CalibrationGate, "confidence below threshold", nil).
			WithDetails(score)
		out.verifyGuard(g)
		return out
	}

	runUUID := uuid.NewString()
	record := &store.CapabilityRecord{
		RunID:           fp.RunID(runUUID),
		RepoFingerprint: fp.Hash,
		RepoName:        fp.Name,
		RepoRoot:        fp.CanonicalRoot,
		Command:         opts.Command,
		Timestamp:       time.Now().UTC(),
		Producer:        version.Current(),
		Governance:      governanceOf(decision, opts.Token),
		Metrics: store.RunMetrics{
			AmbiguityRatio:   score.AmbiguityRatio,
			Confidence:       score.Confidence,
			ConfidenceTier:   score.Tier,
			NeedsHumanHint:   score.NeedsHumanHint,
			LimitsHit:        graph.Metrics.LimitsHit,
			ModuleCandidates: len(layoutResult.Candidates),
			EndpointsTotal:   graph.EndpointsTotal(),
			SmartReused:      graph.Metrics.SmartReused,
			DurationMillis:   time.Since(started).Milliseconds(),
			HintApplied:      bundle != nil,
			HintEmitted:      hintEmitted,
		},
		Keywords:         recordKeywords(layoutResult),
		Endpoints:        recordEndpoints(graph),
		GraphFingerprint: graph.Fingerprint,
	}
	if out.HintEffect != nil {
		record.Metrics.HintEffect = out.HintEffect.Delta
	}
	out.Record = record

	if err := out.persistWorkspace(ws, record, graph, runUUID); err != nil {
		return out.fail(err)
	}
	if hintEmitted {
		out.emitHintBundle(fp, ws, layoutResult, logger)
	}

	if graph.Metrics.LimitsHit && opts.Strict {
		out.State = contract.StateLimitsHit
		out.Err = errors.New(errors.ResourceLimit, "scan budget exceeded", nil).
			WithDetails(graph.Metrics)
		out.verifyGuard(g)
		return out
	}

	if err := out.persistGlobal(record); err != nil {
		return out.fail(err)
	}

	if state := out.persistFederation(decision, record, opts.Strict, logger); state != contract.StateSuccess {
		out.State = state
		out.Err = errors.New(errors.ScopeBlock, "token scope blocks federation index write", nil)
		out.verifyGuard(g)
		return out
	}

	out.verifyGuard(g)
	return out
}

func (out *Outcome) fail(err error) *Outcome {
	out.State = contract.StateInternalError
	out.Err = err
	return out
}

// verifyGuard downgrades the outcome to a read-only violation when the
// target tree changed. A violation outranks whatever state the run was
// heading toward, except an earlier internal error.
func (out *Outcome) verifyGuard(g *guard.Guard) {
	violations, err := g.Verify()
	if err != nil {
		if out.State == contract.StateSuccess {
			out.State = contract.StateInternalError
			out.Err = err
		}
		return
	}
	if len(violations) > 0 {
		out.Violations = violations
		out.State = contract.StateReadOnlyViolation
		out.Err = errors.New(errors.IntegrityViolation, "target repository changed during run", nil).
			WithDetails(violations)
	}
}

func governanceOf(d policy.Decision, presentedToken string) store.Governance {
	gov := store.Governance{
		Enabled:    d.Reason != policy.ReasonDisabled,
		PolicyHash: d.PolicyHash,
		Reason:     string(d.Reason),
	}
	if d.Token != nil && d.Token.Used {
		gov.TokenUsed = true
		gov.TokenHash = policy.HashToken(presentedToken)
	}
	return gov
}

func recordKeywords(result *layout.Result) []string {
	seen := map[string]bool{}
	var keywords []string
	for _, c := range result.Candidates {
		if c.Name != "" && !seen[c.Name] {
			seen[c.Name] = true
			keywords = append(keywords, c.Name)
		}
		if c.Language != "" && !seen[string(c.Language)] {
			seen[string(c.Language)] = true
			keywords = append(keywords, string(c.Language))
		}
	}
	return keywords
}

func recordEndpoints(graph *scan.Graph) []string {
	var endpoints []string
	for _, ep := range graph.Endpoints {
		endpoints = append(endpoints, ep.Method+" "+ep.Path)
	}
	return endpoints
}
