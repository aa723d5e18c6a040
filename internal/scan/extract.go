package scan

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// MarkerDef records a custom marker defined in the repo: a function or
// decorator whose body wraps a framework-level route mapping. Wraps names
// the inner marker when the definition delegates to another custom marker;
// empty Wraps means the body contains the framework call itself.
type MarkerDef struct {
	Name  string `json:"name"`
	Wraps string `json:"wraps,omitempty"`
	File  string `json:"file"`
	Line  int    `json:"line"`
}

// MarkerUse records a call or decoration site using a custom marker with
// a literal path argument. It only becomes an endpoint if the marker name
// resolves (transitively) to a framework mapping.
type MarkerUse struct {
	Name string `json:"name"`
	Path string `json:"path"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// Direct framework idioms. One resolver per idiom so new patterns are
// additive, not invasive.
type endpointResolver struct {
	framework string
	pattern   *regexp.Regexp
	// method index and path index into submatches; method -1 means ANY
	methodIdx int
	pathIdx   int
}

var endpointResolvers = []endpointResolver{
	{
		framework: "net/http",
		pattern:   regexp.MustCompile(`\w+\.HandleFunc\(\s*"((?:/[^"]*)?)"`),
		methodIdx: -1,
		pathIdx:   1,
	},
	{
		framework: "go-router",
		pattern:   regexp.MustCompile(`\w+\.(GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS)\(\s*"(/[^"]*)"`),
		methodIdx: 1,
		pathIdx:   2,
	},
	{
		framework: "express",
		pattern:   regexp.MustCompile(`\w+\.(get|post|put|delete|patch|all)\(\s*['"](/[^'"]*)['"]`),
		methodIdx: 1,
		pathIdx:   2,
	},
	{
		framework: "flask",
		pattern:   regexp.MustCompile(`@\w+\.(route|get|post|put|delete|patch)\(\s*['"](/[^'"]*)['"]`),
		methodIdx: 1,
		pathIdx:   2,
	},
	{
		framework: "spring",
		pattern:   regexp.MustCompile(`@(Get|Post|Put|Delete|Patch|Request)Mapping\(\s*(?:value\s*=\s*)?"(/[^"]*)"`),
		methodIdx: 1,
		pathIdx:   2,
	},
	{
		framework: "jax-rs",
		pattern:   regexp.MustCompile(`@Path\(\s*"(/[^"]*)"`),
		methodIdx: -1,
		pathIdx:   1,
	},
}

var (
	classPattern = regexp.MustCompile(`^\s*(?:export\s+)?(?:public\s+|abstract\s+|final\s+)*(?:class|interface|enum)\s+(\w+)`)
	structPattern = regexp.MustCompile(`^type\s+(\w+)\s+(?:struct|interface)\b`)

	funcDefPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*def\s+(\w+)\s*\(`),
		regexp.MustCompile(`^func\s+(\w+)\s*\(`),
		regexp.MustCompile(`^\s*(?:export\s+)?function\s+(\w+)\s*\(`),
		regexp.MustCompile(`^\s*(?:export\s+)?const\s+(\w+)\s*=\s*\(`),
	}

	// decorator-style marker use: @my_api("/path")
	decoratorUsePattern = regexp.MustCompile(`@(\w+)\(\s*['"](/[^'"]*)['"]`)
	// call-style marker use: registerRoute("/path", ...) or mount(r, "/path")
	callUsePattern = regexp.MustCompile(`\b([a-zA-Z_]\w*)\(\s*(?:\w+\s*,\s*)?['"](/[^'"]*)['"]`)
	// delegation inside a marker body: return inner(path, ...) / inner(path
	delegatePattern = regexp.MustCompile(`\b([a-zA-Z_]\w*)\(\s*(?:path|route|pattern|p)\b`)

	resourcePattern = regexp.MustCompile(`['"]([\w\-./]+\.(?:html|tmpl|tpl|jinja2?|gohtml))['"]`)
)

// markerBodyWindow is how many lines after a function definition are
// inspected for a wrapped framework mapping.
const markerBodyWindow = 10

// builtinCallNames are call-style matches that are already framework
// idioms, never custom markers.
var builtinCallNames = map[string]bool{
	"HandleFunc": true, "Handle": true, "route": true, "add_url_rule": true,
	"get": true, "post": true, "put": true, "delete": true, "patch": true,
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true,
	"Path": true, "require": true, "import": true, "open": true,
}

// extractFile reads one source file and produces its facts.
func extractFile(relPath, absPath string) (FileFacts, error) {
	facts := FileFacts{
		Path:     relPath,
		Language: languageForExt(filepath.Ext(relPath)),
	}

	f, err := os.Open(absPath)
	if err != nil {
		return facts, err
	}
	defer f.Close() //nolint:errcheck // best effort cleanup

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return facts, err
	}
	facts.Lines = len(lines)

	for i, line := range lines {
		lineNo := i + 1

		if m := classPattern.FindStringSubmatch(line); m != nil {
			facts.Classes = append(facts.Classes, m[1])
		} else if m := structPattern.FindStringSubmatch(line); m != nil {
			facts.Classes = append(facts.Classes, m[1])
		}

		direct := false
		for _, r := range endpointResolvers {
			m := r.pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			method := "ANY"
			if r.methodIdx >= 0 {
				method = normalizeMethod(m[r.methodIdx])
			}
			facts.Endpoints = append(facts.Endpoints, Endpoint{
				Method:    method,
				Path:      m[r.pathIdx],
				File:      relPath,
				Line:      lineNo,
				Source:    "direct",
				Framework: r.framework,
			})
			direct = true
			break
		}

		if !direct {
			if use := matchMarkerUse(line, relPath, lineNo); use != nil {
				facts.MarkerUses = append(facts.MarkerUses, *use)
			}
		}

		if def := matchMarkerDef(lines, i, relPath); def != nil {
			facts.MarkerDefs = append(facts.MarkerDefs, *def)
		}

		for _, m := range resourcePattern.FindAllStringSubmatch(line, -1) {
			facts.Resources = appendUnique(facts.Resources, m[1])
		}
	}

	return facts, nil
}

// matchMarkerDef checks whether line i defines a function whose nearby
// body contains a framework mapping (Wraps="") or delegates the path to
// another identifier (Wraps=name).
func matchMarkerDef(lines []string, i int, relPath string) *MarkerDef {
	var name string
	for _, p := range funcDefPatterns {
		if m := p.FindStringSubmatch(lines[i]); m != nil {
			name = m[1]
			break
		}
	}
	if name == "" {
		return nil
	}

	end := i + markerBodyWindow
	if end > len(lines) {
		end = len(lines)
	}
	for j := i + 1; j < end; j++ {
		body := lines[j]
		for _, r := range endpointResolvers {
			if r.pattern.MatchString(body) || strings.Contains(body, ".HandleFunc(") ||
				strings.Contains(body, ".route(") || strings.Contains(body, "add_url_rule(") {
				return &MarkerDef{Name: name, File: relPath, Line: i + 1}
			}
		}
		if m := delegatePattern.FindStringSubmatch(body); m != nil && m[1] != name && !builtinCallNames[m[1]] {
			return &MarkerDef{Name: name, Wraps: m[1], File: relPath, Line: i + 1}
		}
	}
	return nil
}

func matchMarkerUse(line, relPath string, lineNo int) *MarkerUse {
	if m := decoratorUsePattern.FindStringSubmatch(line); m != nil && !builtinCallNames[m[1]] {
		return &MarkerUse{Name: m[1], Path: m[2], File: relPath, Line: lineNo}
	}
	if m := callUsePattern.FindStringSubmatch(line); m != nil && !builtinCallNames[m[1]] {
		return &MarkerUse{Name: m[1], Path: m[2], File: relPath, Line: lineNo}
	}
	return nil
}

// maxMarkerDepth bounds transitive marker resolution; chains deeper than
// this are treated as unresolved.
const maxMarkerDepth = 5

// resolveIndirectEndpoints turns marker uses into endpoints when the used
// marker resolves, transitively, to a definition wrapping a framework
// mapping. Literal matching alone would miss these.
func resolveIndirectEndpoints(files []FileFacts) []Endpoint {
	defs := make(map[string]MarkerDef)
	for _, f := range files {
		for _, d := range f.MarkerDefs {
			defs[d.Name] = d
		}
	}

	resolves := func(name string) bool {
		for depth := 0; depth < maxMarkerDepth; depth++ {
			def, ok := defs[name]
			if !ok {
				return false
			}
			if def.Wraps == "" {
				return true
			}
			name = def.Wraps
		}
		return false
	}

	var endpoints []Endpoint
	for _, f := range files {
		for _, use := range f.MarkerUses {
			if !resolves(use.Name) {
				continue
			}
			endpoints = append(endpoints, Endpoint{
				Method:    "ANY",
				Path:      use.Path,
				File:      use.File,
				Line:      use.Line,
				Source:    "indirect",
				Framework: "marker:" + use.Name,
			})
		}
	}
	return endpoints
}

func normalizeMethod(raw string) string {
	upper := strings.ToUpper(raw)
	switch upper {
	case "ROUTE", "REQUEST", "ALL":
		return "ANY"
	}
	return upper
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

func languageForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".go":
		return "go"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".kt", ".kts":
		return "kotlin"
	case ".dart":
		return "dart"
	case ".rb":
		return "ruby"
	default:
		return ""
	}
}

// isSourceFile reports whether extraction understands this file type.
func isSourceFile(path string) bool {
	return languageForExt(filepath.Ext(path)) != ""
}
