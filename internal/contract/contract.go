// Package contract owns the machine-facing output surface: the single
// terminal-state enum every run collapses into, the exit code each
// state maps to, and the pointer lines printed on stdout. Nothing else
// in the program writes to stdout.
package contract

// State is the terminal state of a run. Every code path ends in exactly
// one of these; the exit code is derived from it and nowhere else.
type State string

const (
	StateSuccess              State = "success"
	StateReadOnlyViolation    State = "read_only_violation"
	StatePolicyDisabled       State = "policy_disabled"
	StateDenyListMatch        State = "deny_list_match"
	StateAllowListMiss        State = "allow_list_miss"
	StatePolicyParseError     State = "policy_parse_error"
	StateLimitsHit            State = "limits_hit"
	StateCalibrationGate      State = "calibration_gate"
	StateHintRejected         State = "hint_rejected"
	StateHintScopeBlock       State = "hint_scope_block"
	StateFederationScopeBlock State = "federation_scope_block"
	StateGraphMismatch        State = "graph_mismatch"
	StateInternalError        State = "internal_error"
)

var exitCodes = map[State]int{
	StateSuccess:              0,
	StateReadOnlyViolation:    3,
	StatePolicyDisabled:       10,
	StateDenyListMatch:        11,
	StateAllowListMiss:        12,
	StatePolicyParseError:     13,
	StateLimitsHit:            20,
	StateCalibrationGate:      21,
	StateHintRejected:         22,
	StateHintScopeBlock:       23,
	StateFederationScopeBlock: 24,
	StateGraphMismatch:        25,
	StateInternalError:        70,
}

// ExitCode maps the state to its process exit code. Unknown states are
// treated as internal errors rather than silently succeeding.
func (s State) ExitCode() int {
	if code, ok := exitCodes[s]; ok {
		return code
	}
	return exitCodes[StateInternalError]
}

// Terminal reports whether the state aborts the pipeline before the
// persist stages.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateLimitsHit:
		return false
	}
	return true
}

// Denied reports whether the state is a policy denial, which guarantees
// zero writes were performed.
func (s State) Denied() bool {
	switch s {
	case StatePolicyDisabled, StateDenyListMatch, StateAllowListMiss, StatePolicyParseError:
		return true
	}
	return false
}
