// Package platform implements the connected-platform registry (§3
// "Platform registry", §6 "connect"): a JSON-persisted map of platform
// name to source path, auto-seeded from each adapter's default path when
// it exists on disk.
package platform

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/lerim-dev/lerim/internal/adapters"
)

// Entry is one connected platform's registry row.
type Entry struct {
	SourcePath  string    `json:"source_path"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Registry is the on-disk platforms.json document: platform name -> Entry.
type Registry struct {
	path    string
	entries map[string]Entry
}

// Load reads platforms.json at path, or returns an empty Registry if the
// file does not yet exist.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("platform: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, &r.entries); err != nil {
		return nil, fmt.Errorf("platform: parse %s: %w", path, err)
	}
	return r, nil
}

// Save writes the registry back to path, atomically.
func (r *Registry) Save() error {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("platform: marshal: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("platform: write temp: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("platform: rename: %w", err)
	}
	return nil
}

// List returns a copy of every connected platform's entry, keyed by name.
func (r *Registry) List() map[string]Entry {
	out := make(map[string]Entry, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// Names returns connected platform names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a platform's entry and whether it is connected.
func (r *Registry) Get(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Add connects platform at sourcePath, overwriting any existing entry.
func (r *Registry) Add(name, sourcePath string) {
	r.entries[name] = Entry{SourcePath: sourcePath, ConnectedAt: time.Now().UTC()}
}

// Remove disconnects a platform. No-op if it was never connected.
func (r *Registry) Remove(name string) {
	delete(r.entries, name)
}

// AutoSeed connects every adapter in reg whose DefaultPath exists on disk
// and is not already connected (§6 "connect auto").
func (r *Registry) AutoSeed(reg adapters.Registry) []string {
	var added []string
	for _, name := range reg.Names() {
		if _, connected := r.entries[name]; connected {
			continue
		}
		adapter, ok := reg.Get(name)
		if !ok {
			continue
		}
		path := adapter.DefaultPath()
		if _, err := os.Stat(path); err != nil {
			continue
		}
		r.Add(name, path)
		added = append(added, name)
	}
	return added
}
