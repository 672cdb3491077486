// Package catalog is the embedded SQLite document store, full-text index,
// and durable job queue backing session discovery and extraction (§4.1).
// Grounded on the teacher's pkg/queue (claim/heartbeat/backoff/orphan
// shape) and pkg/database (schema bootstrap idiom), retargeted from
// Postgres+ent to modernc.org/sqlite with hand-written database/sql.
package catalog

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Catalog wraps the sessions.sqlite3 database. One Catalog is shared by
// every goroutine that touches the session catalog; schema initialization
// is guarded so concurrent first-callers never race (§4.1 "guarded by one
// process-local mutex").
type Catalog struct {
	db   *sql.DB
	path string

	initOnce sync.Once
	initErr  error
}

// Open opens (creating if necessary) the sessions.sqlite3 database at
// path, enables WAL mode and foreign keys, and runs schema bootstrap.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog db: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline; SQLite serializes anyway

	c := &Catalog{db: db, path: path}
	if err := c.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// DB exposes the underlying *sql.DB for packages that need raw access
// (e.g. access tracker reuse of the same driver configuration).
func (c *Catalog) DB() *sql.DB { return c.db }

// Close closes the underlying database handle.
func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) ensureSchema() error {
	c.initOnce.Do(func() {
		if _, err := c.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			c.initErr = fmt.Errorf("enabling WAL mode: %w", err)
			return
		}
		if _, err := c.db.Exec("PRAGMA foreign_keys=ON"); err != nil {
			c.initErr = fmt.Errorf("enabling foreign keys: %w", err)
			return
		}
		if _, err := c.db.Exec(schemaSQL); err != nil {
			c.initErr = fmt.Errorf("applying catalog schema: %w", err)
			return
		}
		slog.Debug("catalog schema ready", "path", c.path)
	})
	return c.initErr
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
