package config

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads Config whenever the user or project config.toml file
// changes on disk, so PATCH /api/config and external edits converge
// without a process restart. Grounded on vanducng-goclaw's direct
// fsnotify.v1 dependency.
type Watcher struct {
	mu      sync.RWMutex
	current *Config
	cwd     string
	fsw     *fsnotify.Watcher
	onChange func(*Config)
}

// NewWatcher builds a Watcher seeded with an already-loaded Config and
// starts watching its contributing directories. Call Close to stop.
func NewWatcher(cfg *Config, cwd string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{current: cfg, cwd: cwd, fsw: fsw}

	dirs := map[string]struct{}{filepath.Dir(filepath.Join(cfg.GlobalRoot, "config.toml")): {}}
	if cfg.ProjectRoot != "" {
		dirs[cfg.ProjectRoot] = struct{}{}
	}
	for dir := range dirs {
		// Best-effort: the directory may not exist yet (no config written).
		_ = fsw.Add(dir)
	}

	go w.run()
	return w, nil
}

// OnChange registers a callback invoked (with the newly reloaded Config)
// whenever a watched config file changes and reloads successfully.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != "config.toml" {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.cwd)
	if err != nil {
		slog.Warn("config reload failed, keeping previous config", "error", err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	cb := w.onChange
	w.mu.Unlock()

	slog.Info("configuration reloaded", "sources", cfg.SourceFiles())
	if cb != nil {
		cb(cfg)
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
