package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: HumanFormat, Level: WarnLevel, Output: &buf})

	logger.Debug("dropped", nil)
	logger.Info("dropped", nil)
	logger.Warn("kept", nil)
	logger.Error("kept too", nil)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("sub-threshold entries leaked: %q", out)
	}
	if !strings.Contains(out, "kept") || !strings.Contains(out, "kept too") {
		t.Errorf("expected warn and error entries, got %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: JSONFormat, Level: InfoLevel, Output: &buf})

	logger.Info("scan complete", map[string]interface{}{"files": 42})

	var entry struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON entry: %v", err)
	}
	if entry.Level != "info" || entry.Message != "scan complete" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Fields["files"] != float64(42) {
		t.Errorf("fields = %v", entry.Fields)
	}
}

func TestHumanFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: HumanFormat, Level: DebugLevel, Output: &buf})

	logger.Info("resolved", map[string]interface{}{"zeta": 1, "alpha": 2, "mid": 3})

	out := buf.String()
	if !strings.Contains(out, "alpha=2 mid=3 zeta=1") {
		t.Errorf("fields not sorted: %q", out)
	}
}

func TestWithCarriesBaseFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: HumanFormat, Level: DebugLevel, Output: &buf})
	scoped := logger.With(map[string]interface{}{"run": "abc123"})

	scoped.Info("persisted", map[string]interface{}{"entries": 2})

	out := buf.String()
	if !strings.Contains(out, "run=abc123") || !strings.Contains(out, "entries=2") {
		t.Errorf("base fields missing: %q", out)
	}

	buf.Reset()
	logger.Info("bare", nil)
	if strings.Contains(buf.String(), "run=") {
		t.Errorf("parent logger mutated by With: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"verbose": WarnLevel,
		"":        WarnLevel,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", input, got, want)
		}
	}
}
