package federation

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// MirrorFileName is the sqlite query mirror, rebuilt from the JSON
// index on every federation write. It is a cache: queries that cannot
// open it fall back to scanning the JSON index in memory.
const MirrorFileName = "index.db"

const mirrorSchema = `
	CREATE TABLE IF NOT EXISTS repos (
		fingerprint TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		root TEXT NOT NULL,
		run_id TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		confidence REAL NOT NULL,
		ambiguity REAL NOT NULL,
		limits_hit INTEGER NOT NULL,
		keywords TEXT,
		endpoints TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_repos_updated ON repos(updated_at);
`

// MirrorPath returns the sqlite mirror location.
func (idx *Index) MirrorPath() string {
	return filepath.Join(idx.dir, MirrorFileName)
}

// rebuildMirror drops and repopulates the sqlite mirror from the
// in-memory index.
func (idx *Index) rebuildMirror() error {
	db, err := openMirror(idx.MirrorPath())
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin mirror rebuild: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec("DELETE FROM repos"); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO repos
		(fingerprint, name, root, run_id, updated_at, confidence, ambiguity, limits_hit, keywords, endpoints)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range idx.Entries {
		limitsHit := 0
		if entry.Latest.Metrics.LimitsHit {
			limitsHit = 1
		}
		_, err := stmt.Exec(
			entry.RepoFingerprint,
			entry.RepoName,
			entry.RepoRoot,
			entry.Latest.RunID,
			entry.UpdatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
			entry.Latest.Metrics.Confidence,
			entry.Latest.Metrics.AmbiguityRatio,
			limitsHit,
			strings.Join(entry.Latest.Keywords, "\n"),
			strings.Join(entry.Latest.Endpoints, "\n"),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// MirrorCandidates consults the sqlite mirror for fingerprints whose
// latest run mentions the keyword or endpoint. An empty second return
// value means the mirror was unusable and the caller should scan the
// JSON index instead.
func (idx *Index) MirrorCandidates(opts QueryOptions) ([]string, bool) {
	db, err := openMirror(idx.MirrorPath())
	if err != nil {
		return nil, false
	}
	defer db.Close()

	query := "SELECT fingerprint FROM repos WHERE 1=1"
	var args []interface{}
	if !opts.IncludeLimitsHit {
		query += " AND limits_hit = 0"
	}

	// Filters are disjunctive: a repo matching either signal stays in,
	// ranking decides which signal wins.
	var filters []string
	if opts.Keyword != "" {
		filters = append(filters, "(name LIKE ? OR keywords LIKE ?)")
		pattern := "%" + opts.Keyword + "%"
		args = append(args, pattern, pattern)
	}
	if opts.Endpoint != "" {
		filters = append(filters, "endpoints LIKE ?")
		args = append(args, "%"+opts.Endpoint+"%")
	}
	if len(filters) > 0 {
		query += " AND (" + strings.Join(filters, " OR ") + ")"
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	var fingerprints []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, false
		}
		fingerprints = append(fingerprints, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, false
	}
	return fingerprints, true
}

func openMirror(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open federation mirror: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set mirror pragma: %w", err)
		}
	}
	if _, err := db.Exec(mirrorSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize mirror schema: %w", err)
	}
	return db, nil
}
