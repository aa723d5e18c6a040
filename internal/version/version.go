// Package version provides centralized version information for scout.
// Persisted artifacts carry the full producer triple so consumers can
// distinguish a tool-version mismatch from a genuine failure.
package version

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X scout/internal/version.Version=1.0.0 -X scout/internal/version.Commit=abc123"
var (
	// Version is the semantic version of scout
	Version = "0.4.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// SchemaVersion is the schema version stamped on every persisted artifact
// (capability snapshots, scan graphs, hint bundles, federation index).
// Bump on any incompatible field change.
const SchemaVersion = 3

// Triple identifies the producer of a persisted artifact.
type Triple struct {
	Producer string `json:"producer"`
	Version  string `json:"version"`
	Schema   int    `json:"schema"`
}

// Current returns the producer triple for this build.
func Current() Triple {
	return Triple{
		Producer: "scout",
		Version:  Version,
		Schema:   SchemaVersion,
	}
}

// Info returns a formatted version string
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return "scout version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
