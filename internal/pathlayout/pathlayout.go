// Package pathlayout resolves the deterministic canonical folder tree Lerim
// keeps under each data root (§2, §6 "Persisted state layout").
package pathlayout

import (
	"fmt"
	"os"
	"path/filepath"
)

// Scope distinguishes the global data root from a per-project data root.
type Scope string

const (
	// ScopeGlobal is the user-level data root (holds platforms.json, the
	// session catalog, and the global user config).
	ScopeGlobal Scope = "global"
	// ScopeProject is a git-root-relative data root under <repo>/.lerim.
	ScopeProject Scope = "project"
)

// Layout is the resolved set of canonical paths under one data root.
type Layout struct {
	Root      string
	Scope     Scope
	Memory    string
	Workspace string
	Index     string
}

// New derives a Layout from a data root directory. It does not create any
// directories; call EnsureDirs for that.
func New(root string, scope Scope) *Layout {
	return &Layout{
		Root:      root,
		Scope:     scope,
		Memory:    filepath.Join(root, "memory"),
		Workspace: filepath.Join(root, "workspace"),
		Index:     filepath.Join(root, "index"),
	}
}

// Decisions returns the decisions/ directory under memory/.
func (l *Layout) Decisions() string { return filepath.Join(l.Memory, "decisions") }

// Learnings returns the learnings/ directory under memory/.
func (l *Layout) Learnings() string { return filepath.Join(l.Memory, "learnings") }

// Summaries returns the summaries/ directory under memory/.
func (l *Layout) Summaries() string { return filepath.Join(l.Memory, "summaries") }

// ArchivedDecisions returns memory/archived/decisions/.
func (l *Layout) ArchivedDecisions() string {
	return filepath.Join(l.Memory, "archived", "decisions")
}

// ArchivedLearnings returns memory/archived/learnings/.
func (l *Layout) ArchivedLearnings() string {
	return filepath.Join(l.Memory, "archived", "learnings")
}

// SessionsDB returns index/sessions.sqlite3. Only meaningful for the global
// data root — the catalog is global-only per §4.1.
func (l *Layout) SessionsDB() string { return filepath.Join(l.Index, "sessions.sqlite3") }

// MemoriesDB returns index/memories.sqlite3 (the access tracker store).
func (l *Layout) MemoriesDB() string { return filepath.Join(l.Index, "memories.sqlite3") }

// GraphDB returns index/graph.sqlite3 (optional memory-graph edges store).
func (l *Layout) GraphDB() string { return filepath.Join(l.Index, "graph.sqlite3") }

// WriterLock returns index/writer.lock.
func (l *Layout) WriterLock() string { return filepath.Join(l.Index, "writer.lock") }

// PlatformsFile returns platforms.json, valid only at the global root.
func (l *Layout) PlatformsFile() string { return filepath.Join(l.Root, "platforms.json") }

// ProjectsFile returns projects.json, valid only at the global root.
func (l *Layout) ProjectsFile() string { return filepath.Join(l.Root, "projects.json") }

// EnsureDirs creates every directory this layout names, idempotently.
func (l *Layout) EnsureDirs() error {
	dirs := []string{
		l.Memory, l.Workspace, l.Index,
		l.Decisions(), l.Learnings(), l.Summaries(),
		l.ArchivedDecisions(), l.ArchivedLearnings(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return nil
}

// RunFolder returns the per-cycle workspace subdirectory for a sync or
// maintain run (§3 "Workspace artifact set").
func (l *Layout) RunFolder(kind, stamp, hexSuffix string) string {
	return filepath.Join(l.Workspace, fmt.Sprintf("%s-%s-%s", kind, stamp, hexSuffix))
}
