// Package logging provides structured diagnostics for the scout pipeline.
// Stdout carries the machine contract lines, so everything here goes to
// stderr unless redirected.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// LogLevel is the minimum severity a logger will emit.
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

func (l LogLevel) rank() int {
	switch l {
	case DebugLevel:
		return 0
	case InfoLevel:
		return 1
	case WarnLevel:
		return 2
	default:
		return 3
	}
}

// ParseLevel maps a flag value to a level, falling back to warn so a
// typo never silences errors.
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToLower(s)) {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return LogLevel(strings.ToLower(s))
	}
	return WarnLevel
}

// Format selects the rendering of log lines.
type Format string

const (
	JSONFormat  Format = "json"
	HumanFormat Format = "human"
)

// Config holds logger configuration.
type Config struct {
	Format Format
	Level  LogLevel
	Output io.Writer // defaults to stderr
}

// Logger renders leveled entries with structured fields. Field keys are
// emitted in sorted order so repeated runs diff cleanly.
type Logger struct {
	format Format
	level  LogLevel
	writer io.Writer
	base   map[string]interface{}
}

// NewLogger creates a logger from the given configuration.
func NewLogger(config Config) *Logger {
	writer := config.Output
	if writer == nil {
		writer = os.Stderr
	}
	level := config.Level
	if level == "" {
		level = WarnLevel
	}
	return &Logger{format: config.Format, level: level, writer: writer}
}

// With returns a child logger whose entries always carry the given
// fields, typically the run id and repo fingerprint.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.base)+len(fields))
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	child := *l
	child.base = merged
	return &child
}

func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.emit(DebugLevel, message, fields)
}

func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.emit(InfoLevel, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.emit(WarnLevel, message, fields)
}

func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.emit(ErrorLevel, message, fields)
}

func (l *Logger) emit(level LogLevel, message string, fields map[string]interface{}) {
	if level.rank() < l.level.rank() {
		return
	}
	merged := fields
	if len(l.base) > 0 {
		merged = make(map[string]interface{}, len(l.base)+len(fields))
		for k, v := range l.base {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if l.format == JSONFormat {
		l.writeJSON(now, level, message, merged)
		return
	}
	l.writeHuman(now, level, message, merged)
}

func (l *Logger) writeJSON(ts string, level LogLevel, message string, fields map[string]interface{}) {
	entry := struct {
		Timestamp string                 `json:"timestamp"`
		Level     string                 `json:"level"`
		Message   string                 `json:"message"`
		Fields    map[string]interface{} `json:"fields,omitempty"`
	}{ts, string(level), message, fields}

	data, err := json.Marshal(entry)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "log marshal failed: %v\n", err)
		return
	}
	_, _ = fmt.Fprintln(l.writer, string(data))
}

func (l *Logger) writeHuman(ts string, level LogLevel, message string, fields map[string]interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", ts, level, message)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	_, _ = fmt.Fprintln(l.writer, b.String())
}
