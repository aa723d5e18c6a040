package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"scout/internal/layout"
	"scout/internal/logging"
)

// Budget bounds one scan pass. Checks happen at file boundaries only;
// a file that started extraction finishes it.
type Budget struct {
	MaxFiles    int
	MaxDuration time.Duration
}

// DefaultBudget is generous enough for most repositories while keeping
// a runaway monorepo walk bounded.
func DefaultBudget() Budget {
	return Budget{
		MaxFiles:    20000,
		MaxDuration: 60 * time.Second,
	}
}

// Options configures the engine.
type Options struct {
	Budget Budget
	// Workers bounds parallel file extraction. Parallelism is a
	// throughput optimization only; 0 or 1 means serial.
	Workers int
	Logger  *logging.Logger
}

// skipDirs are never walked.
var skipDirs = map[string]bool{
	".git": true, ".scout": true, "vendor": true, "node_modules": true,
	"dist": true, "build": true, "target": true, "out": true,
	"__pycache__": true, ".cache": true,
}

// Engine walks candidate roots and produces a scan graph.
type Engine struct {
	repoRoot string
	repoHash string
	cache    *Cache
	opts     Options
}

// NewEngine creates an engine for one canonical repo root.
func NewEngine(repoRoot, repoHash string, cache *Cache, opts Options) *Engine {
	if opts.Budget.MaxFiles == 0 {
		opts.Budget = DefaultBudget()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
	}
	return &Engine{repoRoot: repoRoot, repoHash: repoHash, cache: cache, opts: opts}
}

// Run scans the roots named by the layout result and assembles the graph.
func (e *Engine) Run(layoutResult *layout.Result) (*Graph, error) {
	start := time.Now()
	deadline := start.Add(e.opts.Budget.MaxDuration)

	files, err := e.collectFiles(layoutResult)
	if err != nil {
		return nil, err
	}

	graph := &Graph{
		RepoHash:  e.repoHash,
		CreatedAt: start.UTC(),
		Layout:    layoutResult,
	}
	graph.Metrics.FilesTotal = len(files)

	var (
		mu        sync.Mutex
		facts     = make([]*FileFacts, len(files))
		limitsHit bool
		limitWhy  string
	)

	// Cache lookups and budget accounting stay on this goroutine; only
	// extraction of cache misses fans out.
	type job struct {
		idx     int
		relPath string
		absPath string
		info    os.FileInfo
	}
	var misses []job
	scanned := 0
	seen := make(map[string]bool, len(files))

	for idx, relPath := range files {
		if e.opts.Budget.MaxFiles > 0 && scanned >= e.opts.Budget.MaxFiles {
			limitsHit = true
			limitWhy = "max-files"
			break
		}
		if time.Now().After(deadline) {
			limitsHit = true
			limitWhy = "max-duration"
			break
		}

		absPath := filepath.Join(e.repoRoot, filepath.FromSlash(relPath))
		info, err := os.Stat(absPath)
		if err != nil {
			continue // vanished between walk and stat
		}
		scanned++
		seen[relPath] = true

		if cached := e.cache.Lookup(relPath, absPath, info); cached != nil {
			facts[idx] = cached
			continue
		}
		misses = append(misses, job{idx: idx, relPath: relPath, absPath: absPath, info: info})
	}

	g := new(errgroup.Group)
	g.SetLimit(e.opts.Workers)
	for _, j := range misses {
		g.Go(func() error {
			if time.Now().After(deadline) {
				mu.Lock()
				limitsHit = true
				limitWhy = "max-duration"
				mu.Unlock()
				return nil
			}
			f, err := extractFile(j.relPath, j.absPath)
			if err != nil {
				e.opts.Logger.Debug("Extraction failed, skipping file", map[string]interface{}{
					"path":  j.relPath,
					"error": err.Error(),
				})
				return nil
			}
			mu.Lock()
			facts[j.idx] = &f
			e.cache.Store(j.relPath, j.absPath, j.info, f)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are skips

	for _, f := range facts {
		if f == nil {
			continue
		}
		graph.Files = append(graph.Files, *f)
		graph.Endpoints = append(graph.Endpoints, f.Endpoints...)
	}
	graph.Endpoints = append(graph.Endpoints, resolveIndirectEndpoints(graph.Files)...)
	sort.Slice(graph.Endpoints, func(i, j int) bool {
		if graph.Endpoints[i].File != graph.Endpoints[j].File {
			return graph.Endpoints[i].File < graph.Endpoints[j].File
		}
		return graph.Endpoints[i].Line < graph.Endpoints[j].Line
	})

	// Pruning after a truncated scan would evict entries for files the
	// budget skipped, so only a complete pass prunes.
	if !limitsHit {
		e.cache.Prune(seen)
	}

	graph.Metrics.FilesScanned = len(graph.Files)
	graph.Metrics.CacheHits = e.cache.Hits()
	graph.Metrics.CacheMisses = e.cache.Misses()
	graph.Metrics.CacheHitRatio = e.cache.HitRatio()
	graph.Metrics.LimitsHit = limitsHit
	graph.Metrics.LimitReason = limitWhy
	graph.Metrics.DurationMillis = time.Since(start).Milliseconds()

	graph.Seal()
	return graph, nil
}

// collectFiles gathers the sorted union of source files under the
// candidate roots. The repo root candidate (".") subsumes all others.
func (e *Engine) collectFiles(layoutResult *layout.Result) ([]string, error) {
	roots := candidateRoots(layoutResult)

	set := make(map[string]bool)
	for _, root := range roots {
		absRoot := filepath.Join(e.repoRoot, filepath.FromSlash(root))
		err := filepath.WalkDir(absRoot, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil //nolint:nilerr // intentional: skip unreadable entries
			}
			if d.IsDir() {
				if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
					if path != absRoot {
						return filepath.SkipDir
					}
				}
				return nil
			}
			if !isSourceFile(path) {
				return nil
			}
			rel, err := filepath.Rel(e.repoRoot, path)
			if err != nil {
				return nil //nolint:nilerr
			}
			set[filepath.ToSlash(rel)] = true
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	files := make([]string, 0, len(set))
	for f := range set {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

func candidateRoots(layoutResult *layout.Result) []string {
	if layoutResult == nil || len(layoutResult.Candidates) == 0 {
		return []string{"."}
	}
	var roots []string
	for _, c := range layoutResult.Candidates {
		if c.Root == "." {
			return []string{"."}
		}
		roots = append(roots, c.Root)
	}
	return roots
}
