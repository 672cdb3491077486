// Package runtime is the dependency-injection composition root (§9): it
// owns every long-lived handle — config, database connections, the lock
// manager's configuration, the adapter registry, the platform registry, and
// the LLM role dispatcher — and builds the sync/maintain pipelines, the
// daemon scheduler, and the HTTP API server over them. Grounded on the
// teacher's own constructor-injection style (e.g. `api.NewServer(cfg,
// dbClient, alertService, ...)` in pkg/api/server.go) rather than ambient
// package globals.
package runtime

import (
	"fmt"

	"github.com/lerim-dev/lerim/internal/access"
	"github.com/lerim-dev/lerim/internal/adapters"
	"github.com/lerim-dev/lerim/internal/adapters/claude"
	"github.com/lerim-dev/lerim/internal/adapters/codex"
	"github.com/lerim-dev/lerim/internal/adapters/cursor"
	"github.com/lerim-dev/lerim/internal/adapters/opencode"
	"github.com/lerim-dev/lerim/internal/catalog"
	"github.com/lerim-dev/lerim/internal/config"
	"github.com/lerim-dev/lerim/internal/pathlayout"
	"github.com/lerim-dev/lerim/internal/platform"
	"github.com/lerim-dev/lerim/internal/project"
	"github.com/lerim-dev/lerim/internal/runtimeagent"
)

// Runtime wires together every subsystem a CLI command or HTTP handler
// needs. One Runtime is built per process invocation.
type Runtime struct {
	Config *config.Config

	// GlobalLayout is always the global data root's layout: the session
	// catalog lives there regardless of scope (§6 "index/sessions.sqlite3
	// (global only)").
	GlobalLayout *pathlayout.Layout
	// PrimaryLayout is the data root that sync/maintain write memory and
	// workspace artifacts to: the project root when one is in scope, else
	// the global root (config.Config.PrimaryDataRoot).
	PrimaryLayout *pathlayout.Layout

	Catalog  *catalog.Catalog
	Tracker  *access.Tracker
	Adapters adapters.Registry
	Platforms *platform.Registry
	Projects  *project.Registry

	ModelClient runtimeagent.ModelClient
	Roles       *runtimeagent.RoleDispatcher
}

// New builds a fully wired Runtime from a resolved config. It ensures every
// data root's directory tree exists, opens the session catalog (global
// root) and the access tracker (primary root), registers the four coding-
// agent adapters, and loads (auto-seeding) the platform registry.
func New(cfg *config.Config) (*Runtime, error) {
	globalLayout := pathlayout.New(cfg.GlobalRoot, pathlayout.ScopeGlobal)
	if err := globalLayout.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("runtime: ensure global data root: %w", err)
	}

	primaryRoot := cfg.PrimaryDataRoot()
	primaryLayout := globalLayout
	if primaryRoot != cfg.GlobalRoot {
		primaryLayout = pathlayout.New(primaryRoot, pathlayout.ScopeProject)
		if err := primaryLayout.EnsureDirs(); err != nil {
			return nil, fmt.Errorf("runtime: ensure project data root: %w", err)
		}
	}

	cat, err := catalog.Open(globalLayout.SessionsDB())
	if err != nil {
		return nil, fmt.Errorf("runtime: open session catalog: %w", err)
	}

	tracker, err := access.Open(primaryLayout.MemoriesDB())
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("runtime: open access tracker: %w", err)
	}

	registry := adapters.NewRegistry()
	registry.Register(claude.New())
	registry.Register(codex.New())
	registry.Register(cursor.New())
	registry.Register(opencode.New())

	platforms, err := platform.Load(globalLayout.PlatformsFile())
	if err != nil {
		_ = tracker.Close()
		_ = cat.Close()
		return nil, fmt.Errorf("runtime: load platform registry: %w", err)
	}
	if added := platforms.AutoSeed(registry); len(added) > 0 {
		if err := platforms.Save(); err != nil {
			_ = tracker.Close()
			_ = cat.Close()
			return nil, fmt.Errorf("runtime: save auto-seeded platform registry: %w", err)
		}
	}

	projects, err := project.Load(globalLayout.ProjectsFile())
	if err != nil {
		_ = tracker.Close()
		_ = cat.Close()
		return nil, fmt.Errorf("runtime: load project registry: %w", err)
	}

	modelClient := runtimeagent.NewHTTPModelClient(cfg)
	roles := runtimeagent.NewRoleDispatcher(cfg.LLM, modelClient)

	return &Runtime{
		Config:        cfg,
		GlobalLayout:  globalLayout,
		PrimaryLayout: primaryLayout,
		Catalog:       cat,
		Tracker:       tracker,
		Adapters:      registry,
		Platforms:     platforms,
		Projects:      projects,
		ModelClient:   modelClient,
		Roles:         roles,
	}, nil
}

// Close releases every database handle the Runtime owns.
func (rt *Runtime) Close() error {
	var firstErr error
	if err := rt.Tracker.Close(); err != nil {
		firstErr = err
	}
	if err := rt.Catalog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
