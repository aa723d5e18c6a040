package layout

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// workspaceAdapter detects multi-module build-tool layouts: go.work use
// directives, pnpm workspaces, Cargo workspaces and Gradle settings
// includes. Each member directory becomes its own candidate.
type workspaceAdapter struct{}

func (workspaceAdapter) Name() string { return "workspace" }

func (workspaceAdapter) Detect(repoRoot string) ([]*Candidate, error) {
	var candidates []*Candidate

	candidates = append(candidates, detectGoWork(repoRoot)...)
	candidates = append(candidates, detectPnpmWorkspace(repoRoot)...)
	candidates = append(candidates, detectCargoWorkspace(repoRoot)...)
	candidates = append(candidates, detectGradleSettings(repoRoot)...)

	return candidates, nil
}

func detectGoWork(repoRoot string) []*Candidate {
	data, err := os.ReadFile(filepath.Join(repoRoot, "go.work"))
	if err != nil {
		return nil
	}

	var members []string
	inBlock := false
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "use ("):
			inBlock = true
		case inBlock && trimmed == ")":
			inBlock = false
		case inBlock && trimmed != "":
			members = append(members, strings.Trim(trimmed, `"`))
		case strings.HasPrefix(trimmed, "use "):
			members = append(members, strings.Trim(strings.TrimPrefix(trimmed, "use "), `"`))
		}
	}

	return memberCandidates(repoRoot, members, "go.work", LanguageGo)
}

func detectPnpmWorkspace(repoRoot string) []*Candidate {
	data, err := os.ReadFile(filepath.Join(repoRoot, "pnpm-workspace.yaml"))
	if err != nil {
		return nil
	}

	var ws struct {
		Packages []string `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil
	}

	members := expandMemberGlobs(repoRoot, ws.Packages)
	return memberCandidates(repoRoot, members, "pnpm-workspace.yaml", LanguageTypeScript)
}

func detectCargoWorkspace(repoRoot string) []*Candidate {
	data, err := os.ReadFile(filepath.Join(repoRoot, "Cargo.toml"))
	if err != nil {
		return nil
	}

	var manifest struct {
		Workspace struct {
			Members []string `toml:"members"`
		} `toml:"workspace"`
	}
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil
	}
	if len(manifest.Workspace.Members) == 0 {
		return nil
	}

	members := expandMemberGlobs(repoRoot, manifest.Workspace.Members)
	return memberCandidates(repoRoot, members, "Cargo.toml [workspace]", LanguageRust)
}

var gradleIncludePattern = regexp.MustCompile(`include\s*[\(]?\s*['"]([^'"]+)['"]`)

func detectGradleSettings(repoRoot string) []*Candidate {
	var data []byte
	var err error
	for _, name := range []string{"settings.gradle", "settings.gradle.kts"} {
		data, err = os.ReadFile(filepath.Join(repoRoot, name))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil
	}

	var members []string
	for _, m := range gradleIncludePattern.FindAllStringSubmatch(string(data), -1) {
		// Gradle project paths use ':' separators, ":app:core" -> "app/core"
		member := strings.ReplaceAll(strings.TrimPrefix(m[1], ":"), ":", "/")
		members = append(members, member)
	}

	return memberCandidates(repoRoot, members, "settings.gradle", LanguageJava)
}

// expandMemberGlobs resolves glob entries like "packages/*" into concrete
// directories; plain entries pass through when the directory exists.
func expandMemberGlobs(repoRoot string, entries []string) []string {
	seen := make(map[string]bool)
	var members []string

	for _, entry := range entries {
		if strings.ContainsAny(entry, "*?[") {
			matches, err := filepath.Glob(filepath.Join(repoRoot, filepath.FromSlash(entry)))
			if err != nil {
				continue
			}
			for _, match := range matches {
				if info, err := os.Stat(match); err == nil && info.IsDir() {
					rel, err := filepath.Rel(repoRoot, match)
					if err != nil {
						continue
					}
					rel = filepath.ToSlash(rel)
					if !seen[rel] {
						seen[rel] = true
						members = append(members, rel)
					}
				}
			}
			continue
		}
		clean := filepath.ToSlash(filepath.Clean(entry))
		if info, err := os.Stat(filepath.Join(repoRoot, filepath.FromSlash(clean))); err == nil && info.IsDir() {
			if !seen[clean] {
				seen[clean] = true
				members = append(members, clean)
			}
		}
	}

	sort.Strings(members)
	return members
}

func memberCandidates(repoRoot string, members []string, detail, language string) []*Candidate {
	var candidates []*Candidate
	for _, member := range members {
		if member == "." || member == "" {
			continue
		}
		absMember := filepath.Join(repoRoot, filepath.FromSlash(member))
		name := filepath.Base(member)
		if manifest, lang := manifestInDir(absMember); manifest != "" {
			name = extractModuleName(filepath.Join(absMember, manifest), manifest, name)
			if lang != LanguageUnknown {
				language = lang
			}
		}
		c := &Candidate{
			Name:     name,
			Root:     member,
			Language: language,
			Adapter:  "workspace",
		}
		c.addEvidence("workspace-member", detail, 4.0)
		candidates = append(candidates, c)
	}
	return candidates
}

// manifestInDir returns the first recognized manifest in a directory.
func manifestInDir(dir string) (string, string) {
	for _, mf := range manifestFiles {
		if _, err := os.Stat(filepath.Join(dir, mf.FileName)); err == nil {
			return mf.FileName, mf.Language
		}
	}
	return "", LanguageUnknown
}
