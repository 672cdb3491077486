// Package access implements the memory_access tracker described in §4.7:
// a record of which memory files have been read or written, and how often,
// kept in its own SQLite database separate from the session catalog.
//
// The tracker only records facts. It never decides what to archive — that
// policy lives in EffectiveConfidence and in the maintain prompt that
// consumes it.
package access

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Tracker wraps memories.sqlite3.
type Tracker struct {
	db       *sql.DB
	initOnce sync.Once
	initErr  error
}

// Open opens (creating if absent) the access tracker database at path.
func Open(path string) (*Tracker, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("access: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	t := &Tracker{db: db}
	if err := t.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tracker) ensureSchema() error {
	t.initOnce.Do(func() {
		if _, err := t.db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			t.initErr = fmt.Errorf("access: journal_mode: %w", err)
			return
		}
		if _, err := t.db.Exec(schemaSQL); err != nil {
			t.initErr = fmt.Errorf("access: schema: %w", err)
			return
		}
		slog.Debug("access tracker schema ready")
	})
	return t.initErr
}

// DB exposes the underlying handle for callers that need raw access.
func (t *Tracker) DB() *sql.DB { return t.db }

// Close closes the underlying database.
func (t *Tracker) Close() error { return t.db.Close() }

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// memoryIDPattern matches the YYYYMMDD-<slug> stem (without ".md") of the
// only filenames that produce access records per §4.7.
var memoryIDPattern = regexp.MustCompile(`^\d{8}-[a-z0-9-]+$`)

// IsTrackableMemoryID reports whether id (a filename stem) has the
// YYYYMMDD-slug shape required for access records. It checks the stem only:
// an archived file keeps the same stem, so excluding archived files by
// location is IsTrackableMemoryPath's job.
func IsTrackableMemoryID(id string) bool {
	return memoryIDPattern.MatchString(id)
}

// IsTrackableMemoryPath reports whether abs (an absolute path) is eligible
// for access tracking and, if so, returns its memory id. A path is
// trackable only when it sits directly in memoryRoot/decisions/ or
// memoryRoot/learnings/ — not memoryRoot/archived/decisions/, not
// memoryRoot/summaries/, not any other nesting — and its filename stem
// matches the canonical YYYYMMDD-slug shape (§4.7: "only files directly
// under memory/{decisions,learnings}/ ... produce access records").
func IsTrackableMemoryPath(memoryRoot, abs string) (id string, ok bool) {
	rel, err := filepath.Rel(memoryRoot, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || (parts[0] != "decisions" && parts[0] != "learnings") {
		return "", false
	}
	stem := strings.TrimSuffix(parts[1], filepath.Ext(parts[1]))
	if !IsTrackableMemoryID(stem) {
		return "", false
	}
	return stem, true
}

// RecordRead records a read of memoryID under memoryRoot, but only if the
// read exceeded the frontmatter preview window (§4.7: "limit > 20 lines or
// absent"). linesRequested of 0 means "no limit", i.e. the full file.
func (t *Tracker) RecordRead(memoryID, memoryRoot string, linesRequested int) error {
	if !IsTrackableMemoryID(memoryID) {
		return nil
	}
	if linesRequested != 0 && linesRequested <= 20 {
		return nil
	}
	return t.touch(memoryID, memoryRoot)
}

// RecordWrite always records a write of memoryID under memoryRoot (§4.7:
// "memory-file writes always count").
func (t *Tracker) RecordWrite(memoryID, memoryRoot string) error {
	if !IsTrackableMemoryID(memoryID) {
		return nil
	}
	return t.touch(memoryID, memoryRoot)
}

func (t *Tracker) touch(memoryID, memoryRoot string) error {
	ts := now()
	_, err := t.db.Exec(`
		INSERT INTO memory_access (memory_id, memory_root, last_accessed, access_count, created_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (memory_id, memory_root) DO UPDATE SET
			last_accessed = excluded.last_accessed,
			access_count = access_count + 1`,
		memoryID, memoryRoot, ts, ts)
	if err != nil {
		return fmt.Errorf("access: touch %s: %w", memoryID, err)
	}
	return nil
}

// Record is one memory_access row.
type Record struct {
	MemoryID     string
	MemoryRoot   string
	LastAccessed time.Time
	AccessCount  int
	CreatedAt    time.Time
}

// Get returns the access record for (memoryID, memoryRoot), or nil if the
// memory has never been read or written.
func (t *Tracker) Get(memoryID, memoryRoot string) (*Record, error) {
	row := t.db.QueryRow(`
		SELECT memory_id, memory_root, last_accessed, access_count, created_at
		FROM memory_access WHERE memory_id = ? AND memory_root = ?`, memoryID, memoryRoot)

	var rec Record
	var lastAccessed, createdAt string
	if err := row.Scan(&rec.MemoryID, &rec.MemoryRoot, &lastAccessed, &rec.AccessCount, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("access: get %s: %w", memoryID, err)
	}
	t1, err := time.Parse(time.RFC3339, lastAccessed)
	if err != nil {
		return nil, fmt.Errorf("access: parse last_accessed: %w", err)
	}
	t2, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("access: parse created_at: %w", err)
	}
	rec.LastAccessed = t1
	rec.CreatedAt = t2
	return &rec, nil
}

// ListByRoot returns every access record under memoryRoot, for the maintain
// prompt's decay pass.
func (t *Tracker) ListByRoot(memoryRoot string) ([]Record, error) {
	rows, err := t.db.Query(`
		SELECT memory_id, memory_root, last_accessed, access_count, created_at
		FROM memory_access WHERE memory_root = ?`, memoryRoot)
	if err != nil {
		return nil, fmt.Errorf("access: list %s: %w", memoryRoot, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var lastAccessed, createdAt string
		if err := rows.Scan(&rec.MemoryID, &rec.MemoryRoot, &lastAccessed, &rec.AccessCount, &createdAt); err != nil {
			return nil, fmt.Errorf("access: scan: %w", err)
		}
		rec.LastAccessed, err = time.Parse(time.RFC3339, lastAccessed)
		if err != nil {
			return nil, fmt.Errorf("access: parse last_accessed: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("access: parse created_at: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ResetRoot deletes every access record under memoryRoot, used by `lerim
// memory reset` so a wiped memory tree does not leave orphaned access rows
// behind for the next maintain cycle's decay pass to trip over.
func (t *Tracker) ResetRoot(memoryRoot string) error {
	if _, err := t.db.Exec(`DELETE FROM memory_access WHERE memory_root = ?`, memoryRoot); err != nil {
		return fmt.Errorf("access: reset %s: %w", memoryRoot, err)
	}
	return nil
}
