package contract

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestExitCodeMapping(t *testing.T) {
	cases := map[State]int{
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
	for state, want := range cases {
		if got := state.ExitCode(); got != want {
			t.Errorf("State %s: expected exit %d, got %d", state, want, got)
		}
	}
}

func TestUnknownStateIsInternalError(t *testing.T) {
	if got := State("made_up").ExitCode(); got != 70 {
		t.Errorf("Unknown states must map to the internal error code, got %d", got)
	}
}

func TestDeniedStates(t *testing.T) {
	denied := []State{StatePolicyDisabled, StateDenyListMatch, StateAllowListMiss, StatePolicyParseError}
	for _, s := range denied {
		if !s.Denied() {
			t.Errorf("State %s must be a denial", s)
		}
	}
	if StateSuccess.Denied() || StateCalibrationGate.Denied() {
		t.Error("Non-policy states must not be denials")
	}
}

func TestPointerLineFormat(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)

	payload := map[string]string{"repoName": "widget"}
	if err := e.Pointer(KindCapability, "/state/ws/capability.json", payload); err != nil {
		t.Fatalf("Pointer failed: %v", err)
	}

	line := strings.TrimRight(buf.String(), "\n")
	parts := strings.SplitN(line, " ", 4)
	if len(parts) != 4 {
		t.Fatalf("Expected 4 line fields, got %d: %q", len(parts), line)
	}
	if parts[0] != "SCOUT:CAPABILITY" {
		t.Errorf("Unexpected line tag: %s", parts[0])
	}
	if parts[1] != "/state/ws/capability.json" {
		t.Errorf("Expected absolute artifact path, got %s", parts[1])
	}
	if !strings.HasPrefix(parts[2], "scout/") || !strings.Contains(parts[2], "/schema-") {
		t.Errorf("Expected producer version triple, got %s", parts[2])
	}

	var decoded map[string]string
	if err := json.Unmarshal([]byte(parts[3]), &decoded); err != nil {
		t.Fatalf("Payload is not valid JSON: %v", err)
	}
	if decoded["repoName"] != "widget" {
		t.Errorf("Payload lost: %v", decoded)
	}
}

func TestStatusLineCarriesExitCode(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)

	if err := e.Status(StateCalibrationGate, nil); err != nil {
		t.Fatalf("Status failed: %v", err)
	}

	line := buf.String()
	if !strings.HasPrefix(line, "SCOUT:STATUS - ") {
		t.Errorf("Status line must carry no artifact path: %q", line)
	}

	idx := strings.Index(line, "{")
	var payload struct {
		State    string `json:"state"`
		ExitCode int    `json:"exitCode"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(line[idx:])), &payload); err != nil {
		t.Fatalf("Status payload not JSON: %v", err)
	}
	if payload.State != string(StateCalibrationGate) || payload.ExitCode != 21 {
		t.Errorf("Unexpected status payload: %+v", payload)
	}
}

func TestDeniedBlockEndsWithStatus(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)

	if err := e.Denied(StateDenyListMatch, map[string]string{"reason": "deny_list_match"}); err != nil {
		t.Fatalf("Denied failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected denial line plus status line, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "SCOUT:DENIED ") {
		t.Errorf("Expected DENIED first, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "SCOUT:STATUS ") {
		t.Errorf("Expected STATUS last, got %q", lines[1])
	}
}
