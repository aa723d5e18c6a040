package layout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Language labels attached to candidates.
const (
	LanguageGo         = "go"
	LanguageTypeScript = "typescript"
	LanguageJavaScript = "javascript"
	LanguagePython     = "python"
	LanguageRust       = "rust"
	LanguageJava       = "java"
	LanguageKotlin     = "kotlin"
	LanguageDart       = "dart"
	LanguageUnknown    = "unknown"
)

// ManifestFile describes one recognized project manifest.
type ManifestFile struct {
	FileName string
	Language string
	Weight   float64
}

// manifestFiles is the recognition list, strongest signals first.
var manifestFiles = []ManifestFile{
	{FileName: "go.mod", Language: LanguageGo, Weight: 5.0},
	{FileName: "package.json", Language: LanguageTypeScript, Weight: 5.0},
	{FileName: "Cargo.toml", Language: LanguageRust, Weight: 5.0},
	{FileName: "pyproject.toml", Language: LanguagePython, Weight: 5.0},
	{FileName: "pubspec.yaml", Language: LanguageDart, Weight: 5.0},
	{FileName: "pom.xml", Language: LanguageJava, Weight: 5.0},
	{FileName: "build.gradle", Language: LanguageJava, Weight: 4.0},
	{FileName: "build.gradle.kts", Language: LanguageKotlin, Weight: 4.0},
	{FileName: "setup.py", Language: LanguagePython, Weight: 3.0},
}

// manifestAdapter detects the standard single-module layout: a manifest at
// the repository root (or one level below when the root itself is bare).
type manifestAdapter struct{}

func (manifestAdapter) Name() string { return "manifest" }

func (manifestAdapter) Detect(repoRoot string) ([]*Candidate, error) {
	var candidates []*Candidate

	for _, mf := range manifestFiles {
		manifestPath := filepath.Join(repoRoot, mf.FileName)
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}
		c := &Candidate{
			Name:     extractModuleName(manifestPath, mf.FileName, filepath.Base(repoRoot)),
			Root:     ".",
			Language: mf.Language,
			Adapter:  "manifest",
		}
		c.addEvidence("manifest", mf.FileName, mf.Weight)
		candidates = append(candidates, c)
		break // one root candidate per repo; strongest manifest wins
	}

	return candidates, nil
}

// extractModuleName pulls the declared project name out of a manifest,
// falling back to the containing directory name.
func extractModuleName(manifestPath, manifestType, fallback string) string {
	switch manifestType {
	case "package.json":
		return extractNameFromPackageJSON(manifestPath, fallback)
	case "go.mod":
		return extractNameFromGoMod(manifestPath, fallback)
	case "Cargo.toml":
		return extractNameFromCargoToml(manifestPath, fallback)
	case "pyproject.toml":
		return extractNameFromPyproject(manifestPath, fallback)
	case "pubspec.yaml":
		return extractNameFromPubspec(manifestPath, fallback)
	}
	return fallback
}

func extractNameFromPackageJSON(path, fallback string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	var pkg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Name == "" {
		return fallback
	}
	return pkg.Name
}

func extractNameFromGoMod(path, fallback string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "module ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				segs := strings.Split(parts[1], "/")
				return segs[len(segs)-1]
			}
		}
	}
	return fallback
}

func extractNameFromCargoToml(path, fallback string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	var manifest struct {
		Package struct {
			Name string `toml:"name"`
		} `toml:"package"`
	}
	if err := toml.Unmarshal(data, &manifest); err != nil || manifest.Package.Name == "" {
		return fallback
	}
	return manifest.Package.Name
}

func extractNameFromPyproject(path, fallback string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	var manifest struct {
		Project struct {
			Name string `toml:"name"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Name string `toml:"name"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return fallback
	}
	if manifest.Project.Name != "" {
		return manifest.Project.Name
	}
	if manifest.Tool.Poetry.Name != "" {
		return manifest.Tool.Poetry.Name
	}
	return fallback
}

func extractNameFromPubspec(path, fallback string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "name:") {
			parts := strings.SplitN(trimmed, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return fallback
}
