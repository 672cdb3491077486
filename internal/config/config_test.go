package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePort(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{8765, 8765},
		{0, 8765},
		{-1, 8765},
		{65536, 8765},
		{65535, 65535},
		{80, 80},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizePort(c.in))
	}
}

func TestLoad_DefaultsOnly(t *testing.T) {
	home := t.TempDir()
	t.Setenv("LERIM_HOME", home)
	t.Setenv("LERIM_CONFIG", "")

	cfg, err := Load(home) // not inside a git repo
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(home), filepath.Clean(cfg.GlobalRoot))
	assert.Equal(t, DefaultQueueConfig().MaxAttempts, cfg.Queue.MaxAttempts)
	assert.Equal(t, 8765, cfg.HTTP.Port)
}

func TestLoad_UserOverridesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("LERIM_HOME", home)
	t.Setenv("LERIM_CONFIG", "")

	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte(`
[http]
port = 9001

[queue]
max_attempts = 7
`), 0o644))

	cfg, err := Load(home)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.HTTP.Port)
	assert.Equal(t, 7, cfg.Queue.MaxAttempts)
}

func TestLoad_ExplicitOverrideWins(t *testing.T) {
	home := t.TempDir()
	t.Setenv("LERIM_HOME", home)

	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte(`
[http]
port = 9001
`), 0o644))

	override := filepath.Join(t.TempDir(), "override.toml")
	require.NoError(t, os.WriteFile(override, []byte(`
[http]
port = 9999
`), 0o644))
	t.Setenv("LERIM_CONFIG", override)

	cfg, err := Load(home)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.HTTP.Port)
}

func TestDataRoots_GlobalOnly(t *testing.T) {
	cfg := &Config{GlobalRoot: "/g", ProjectRoot: "/p", Defaults: Defaults{MemoryScope: ScopeGlobalOnly}}
	assert.Equal(t, []string{"/g"}, cfg.DataRoots())
}

func TestDataRoots_AutoPrefersProject(t *testing.T) {
	cfg := &Config{GlobalRoot: "/g", ProjectRoot: "/p", Defaults: Defaults{MemoryScope: ScopeAuto}}
	assert.Equal(t, []string{"/p", "/g"}, cfg.DataRoots())
	assert.Equal(t, "/p", cfg.PrimaryDataRoot())
}
