package contract

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"scout/internal/version"
)

// LineKind tags a machine line so consumers can dispatch without
// parsing the payload.
type LineKind string

const (
	KindCapability LineKind = "CAPABILITY"
	KindHints      LineKind = "HINTS"
	KindFederation LineKind = "FEDERATION"
	KindGraph      LineKind = "GRAPH"
	KindStatus     LineKind = "STATUS"
	KindDenied     LineKind = "DENIED"
)

// Emitter writes machine lines to a single stream, normally stdout.
// Each line is self-describing: kind, absolute artifact path (or "-"
// when the line carries no artifact), the producer version triple, and
// an inline JSON payload.
type Emitter struct {
	out    io.Writer
	triple version.Triple
}

// NewEmitter returns an emitter stamped with the current producer
// triple.
func NewEmitter(out io.Writer) *Emitter {
	return &Emitter{out: out, triple: version.Current()}
}

// Pointer emits an artifact pointer line. The path is made absolute so
// consumers can open the artifact without knowing the working
// directory.
func (e *Emitter) Pointer(kind LineKind, path string, payload interface{}) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return e.write(kind, abs, payload)
}

// Status emits the terminal status line. Every run ends with exactly
// one of these, success or not.
func (e *Emitter) Status(state State, payload interface{}) error {
	wrapped := map[string]interface{}{
		"state":    string(state),
		"exitCode": state.ExitCode(),
	}
	if payload != nil {
		wrapped["detail"] = payload
	}
	return e.write(KindStatus, "-", wrapped)
}

// Denied emits the denial block: a DENIED line carrying the decision,
// followed by the status line for the denial state.
func (e *Emitter) Denied(state State, decision interface{}) error {
	if err := e.write(KindDenied, "-", decision); err != nil {
		return err
	}
	return e.Status(state, nil)
}

func (e *Emitter) write(kind LineKind, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	_, err = fmt.Fprintf(e.out, "SCOUT:%s %s %s/%s/schema-%d %s\n",
		kind, path, e.triple.Producer, e.triple.Version, e.triple.Schema, body)
	return err
}
