package platform

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lerim-dev/lerim/internal/adapters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name string
	path string
}

func (f fakeAdapter) Name() string       { return f.name }
func (f fakeAdapter) DefaultPath() string { return f.path }
func (f fakeAdapter) CountSessions(string) (int, error) { return 0, nil }
func (f fakeAdapter) IterSessions(string, *time.Time, *time.Time, map[string]string) ([]adapters.SessionRecord, error) {
	return nil, nil
}
func (f fakeAdapter) FindSessionPath(string, string) (string, error) { return "", nil }
func (f fakeAdapter) ReadSession(string, string) (*adapters.ViewerSession, error) { return nil, nil }

func TestLoadMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platforms.json")
	r, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, r.Names())
}

func TestAddSaveLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platforms.json")
	r, err := Load(path)
	require.NoError(t, err)

	r.Add("claude", "/home/user/.claude/projects")
	require.NoError(t, r.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	entry, ok := reloaded.Get("claude")
	require.True(t, ok)
	assert.Equal(t, "/home/user/.claude/projects", entry.SourcePath)
	assert.False(t, entry.ConnectedAt.IsZero())
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platforms.json")
	r, err := Load(path)
	require.NoError(t, err)

	r.Add("codex", "/home/user/.codex/sessions")
	r.Remove("codex")
	_, ok := r.Get("codex")
	assert.False(t, ok)
}

func TestAutoSeedConnectsOnlyExistingPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platforms.json")
	r, err := Load(path)
	require.NoError(t, err)

	existingDir := t.TempDir()
	reg := adapters.NewRegistry()
	reg.Register(fakeAdapter{name: "claude", path: existingDir})
	reg.Register(fakeAdapter{name: "codex", path: "/does/not/exist"})

	added := r.AutoSeed(reg)
	assert.ElementsMatch(t, []string{"claude"}, added)

	_, ok := r.Get("claude")
	assert.True(t, ok)
	_, ok = r.Get("codex")
	assert.False(t, ok)
}

func TestAutoSeedSkipsAlreadyConnected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platforms.json")
	r, err := Load(path)
	require.NoError(t, err)

	existingDir := t.TempDir()
	r.Add("claude", "/some/custom/path")

	reg := adapters.NewRegistry()
	reg.Register(fakeAdapter{name: "claude", path: existingDir})

	added := r.AutoSeed(reg)
	assert.Empty(t, added)

	entry, _ := r.Get("claude")
	assert.Equal(t, "/some/custom/path", entry.SourcePath) // untouched
}
