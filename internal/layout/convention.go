package layout

import (
	"os"
	"path/filepath"
	"strings"
)

// semanticDirNames are directory names that commonly hold a project's
// primary sources under non-standard layouts.
var semanticDirNames = map[string]bool{
	"src": true, "lib": true, "app": true, "server": true, "backend": true,
	"core": true, "engine": true, "source": true, "sources": true,
	"services": true, "api": true, "web": true,
}

// ignoredDirNames are never proposed as module roots.
var ignoredDirNames = map[string]bool{
	"node_modules": true, "vendor": true, "dist": true, "build": true,
	"target": true, "out": true, "bin": true, "__pycache__": true,
	"testdata": true, "docs": true, "examples": true,
}

// indexFileNames signal a directory is a deliberate source root.
var indexFileNames = map[string]string{
	"index.ts":    LanguageTypeScript,
	"index.js":    LanguageJavaScript,
	"main.go":     LanguageGo,
	"main.py":     LanguagePython,
	"__init__.py": LanguagePython,
	"lib.rs":      LanguageRust,
	"main.rs":     LanguageRust,
}

const (
	conventionMaxDepth = 2
	conventionMinScore = 2.0
)

// conventionAdapter handles non-standard source-root naming: no manifest
// anywhere useful, but directories whose name, index files or file density
// mark them as the real module root.
type conventionAdapter struct{}

func (conventionAdapter) Name() string { return "convention" }

func (conventionAdapter) Detect(repoRoot string) ([]*Candidate, error) {
	var candidates []*Candidate

	err := filepath.WalkDir(repoRoot, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // intentional: skip unreadable directories
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(repoRoot, path)
		if relErr != nil || rel == "." {
			return nil
		}

		depth := strings.Count(filepath.ToSlash(rel), "/") + 1
		if depth > conventionMaxDepth {
			return filepath.SkipDir
		}

		dirName := filepath.Base(path)
		if ignoredDirNames[dirName] || strings.HasPrefix(dirName, ".") {
			return filepath.SkipDir
		}

		if c := scoreConventionDir(path, filepath.ToSlash(rel), depth); c != nil {
			candidates = append(candidates, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return candidates, nil
}

// scoreConventionDir scores one directory; nil when below threshold.
func scoreConventionDir(absPath, relPath string, depth int) *Candidate {
	c := &Candidate{
		Name:    filepath.Base(relPath),
		Root:    relPath,
		Adapter: "convention",
	}

	if name, lang := findIndexFile(absPath); name != "" {
		c.Language = lang
		c.addEvidence("index-file", name, 3.0)
	}

	fileCount, lang := countSourceFiles(absPath)
	if fileCount >= 3 {
		c.addEvidence("file-density", "", 2.0)
	}
	if c.Language == "" {
		c.Language = lang
	}

	if semanticDirNames[strings.ToLower(filepath.Base(relPath))] {
		c.addEvidence("semantic-name", filepath.Base(relPath), 2.0)
	}

	if depth == 1 {
		c.addEvidence("top-level", "", 1.0)
	}

	if c.Score < conventionMinScore {
		return nil
	}
	return c
}

func findIndexFile(absPath string) (string, string) {
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return "", ""
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if lang, ok := indexFileNames[strings.ToLower(entry.Name())]; ok {
			return entry.Name(), lang
		}
	}
	return "", ""
}

// countSourceFiles counts source files directly in a directory and
// returns the dominant language.
func countSourceFiles(absPath string) (int, string) {
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return 0, LanguageUnknown
	}

	langCounts := make(map[string]int)
	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if lang := languageForExt(filepath.Ext(entry.Name())); lang != LanguageUnknown {
			langCounts[lang]++
			total++
		}
	}

	dominant := LanguageUnknown
	maxCount := 0
	for lang, count := range langCounts {
		if count > maxCount {
			maxCount = count
			dominant = lang
		}
	}
	return total, dominant
}

func languageForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".go":
		return LanguageGo
	case ".ts", ".tsx":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs":
		return LanguageJavaScript
	case ".py":
		return LanguagePython
	case ".rs":
		return LanguageRust
	case ".java":
		return LanguageJava
	case ".kt", ".kts":
		return LanguageKotlin
	case ".dart":
		return LanguageDart
	default:
		return LanguageUnknown
	}
}
