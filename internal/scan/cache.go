package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"
)

// mtimeCoarseness is the window within which an mtime alone cannot prove
// freshness: filesystems with second-granularity timestamps can miss a
// sub-second rewrite, so entries this close to their stat time carry a
// content hash as fallback identity.
const mtimeCoarseness = 2 * time.Second

// cacheEntry is the stored identity and facts for one file.
type cacheEntry struct {
	Size    int64     `json:"size"`
	ModTime int64     `json:"modTime"` // UnixNano
	Hash    string    `json:"hash,omitempty"`
	Facts   FileFacts `json:"facts"`
}

// Cache skips re-extraction of unchanged files. Keyed by file identity:
// path + size + mtime, with a sha256 fallback when mtime is too coarse
// to be trusted. Soundness rule: a hit must never yield facts a fresh
// read would not also yield; detected drift invalidates the entry.
type Cache struct {
	Schema  int                   `json:"schema"`
	Entries map[string]cacheEntry `json:"entries"`

	hits   int
	misses int
	dirty  bool
}

const cacheSchemaVersion = 2

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{Schema: cacheSchemaVersion, Entries: make(map[string]cacheEntry)}
}

// LoadCache reads a cache file; a missing, unreadable or schema-mismatched
// file yields an empty cache rather than an error.
func LoadCache(path string) *Cache {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewCache()
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil || c.Schema != cacheSchemaVersion {
		return NewCache()
	}
	if c.Entries == nil {
		c.Entries = make(map[string]cacheEntry)
	}
	return &c
}

// Save writes the cache atomically (temp + rename). No-op when nothing
// changed since load.
func (c *Cache) Save(path string) error {
	if !c.dirty {
		return nil
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	c.dirty = false
	return nil
}

// Lookup returns cached facts when the file identity matches, or nil on
// miss. A stat match inside the mtime coarseness window additionally
// requires a content-hash match.
func (c *Cache) Lookup(relPath, absPath string, info os.FileInfo) *FileFacts {
	entry, ok := c.Entries[relPath]
	if !ok {
		c.misses++
		return nil
	}

	if entry.Size != info.Size() || entry.ModTime != info.ModTime().UnixNano() {
		c.misses++
		return nil
	}

	if entry.Hash != "" {
		hash, err := hashFile(absPath)
		if err != nil || hash != entry.Hash {
			// Drift despite matching stat identity: the entry is unsound.
			delete(c.Entries, relPath)
			c.dirty = true
			c.misses++
			return nil
		}
	}

	c.hits++
	facts := entry.Facts
	return &facts
}

// Store records freshly extracted facts under the file's identity. Files
// modified within the coarseness window get a content hash so the next
// lookup cannot produce a false hit.
func (c *Cache) Store(relPath, absPath string, info os.FileInfo, facts FileFacts) {
	entry := cacheEntry{
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
		Facts:   facts,
	}
	if time.Since(info.ModTime()) < mtimeCoarseness {
		if hash, err := hashFile(absPath); err == nil {
			entry.Hash = hash
		}
	}
	c.Entries[relPath] = entry
	c.dirty = true
}

// Prune drops entries for files no longer present in the scanned set.
func (c *Cache) Prune(seen map[string]bool) {
	for path := range c.Entries {
		if !seen[path] {
			delete(c.Entries, path)
			c.dirty = true
		}
	}
}

// Hits returns the hit counter for this cache session.
func (c *Cache) Hits() int { return c.hits }

// Misses returns the miss counter for this cache session.
func (c *Cache) Misses() int { return c.misses }

// HitRatio returns hits / (hits+misses), or 0 when nothing was looked up.
func (c *Cache) HitRatio() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// hashFile computes the sha256 of a file's content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // best effort cleanup

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
