package maintainpipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lerim-dev/lerim/internal/access"
	"github.com/lerim-dev/lerim/internal/catalog"
	"github.com/lerim-dev/lerim/internal/config"
	"github.com/lerim-dev/lerim/internal/lock"
	"github.com/lerim-dev/lerim/internal/pathlayout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, invoker AgentInvoker) *Pipeline {
	t.Helper()
	root := t.TempDir()
	layout := pathlayout.New(root, pathlayout.ScopeGlobal)
	require.NoError(t, layout.EnsureDirs())

	cat, err := catalog.Open(layout.SessionsDB())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	tracker, err := access.Open(layout.MemoriesDB())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })

	return &Pipeline{
		Catalog:    cat,
		Tracker:    tracker,
		Layout:     layout,
		Decay:      config.DefaultDecayConfig(),
		LockConfig: config.LockConfig{StaleSeconds: 60},
		Invoker:    invoker,
	}
}

func writeMaintainActions(t *testing.T, runFolder string, merged, archived int) {
	t.Helper()
	contract := map[string]any{
		"actions": []any{},
		"counts":  map[string]int{"merged": merged, "archived": archived, "consolidated": 0, "decayed": 0, "unchanged": 0},
	}
	data, _ := json.Marshal(contract)
	require.NoError(t, os.WriteFile(filepath.Join(runFolder, "maintain_actions.json"), data, 0o644))
}

func TestMaintainPipelineSucceeds(t *testing.T) {
	var gotRunFolder string
	p := newTestPipeline(t, func(ctx context.Context, runFolder string, stats []access.Record) error {
		gotRunFolder = runFolder
		writeMaintainActions(t, runFolder, 1, 2)
		return nil
	})

	result, err := p.Run(context.Background(), Options{Trigger: "test"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, 1, result.Counts["merged"])
	assert.Equal(t, 2, result.Counts["archived"])
	assert.Equal(t, gotRunFolder, result.RunFolder)
}

func TestMaintainPipelineDryRunSkipsLockAndAgent(t *testing.T) {
	invoked := false
	p := newTestPipeline(t, func(ctx context.Context, runFolder string, stats []access.Record) error {
		invoked = true
		return nil
	})

	result, err := p.Run(context.Background(), Options{Trigger: "test", DryRun: true})
	require.NoError(t, err)
	assert.False(t, invoked)
	assert.Equal(t, 0, result.ExitCode)
}

func TestMaintainPipelineLockBusyExitsFour(t *testing.T) {
	p := newTestPipeline(t, func(ctx context.Context, runFolder string, stats []access.Record) error {
		return nil
	})

	held := lock.New(p.Layout.WriterLock(), 60)
	require.NoError(t, held.Acquire("other-process", "lerim maintain"))
	t.Cleanup(func() { _ = held.Release() })

	result, err := p.Run(context.Background(), Options{Trigger: "test"})
	require.NoError(t, err)
	assert.Equal(t, 4, result.ExitCode)
}

func TestMaintainPipelineInvokerErrorExitsOne(t *testing.T) {
	p := newTestPipeline(t, func(ctx context.Context, runFolder string, stats []access.Record) error {
		return assert.AnError
	})

	result, err := p.Run(context.Background(), Options{Trigger: "test"})
	require.Error(t, err)
	assert.Equal(t, 1, result.ExitCode)
}

func TestMaintainPipelineRejectsSourcePathOutsideRoots(t *testing.T) {
	p := newTestPipeline(t, func(ctx context.Context, runFolder string, stats []access.Record) error {
		contract := map[string]any{
			"actions": []any{map[string]any{"kind": "merge", "source_path": "/etc/passwd", "target_path": filepath.Join(p.Layout.Memory, "x.md")}},
			"counts":  map[string]int{"merged": 1, "archived": 0, "consolidated": 0, "decayed": 0, "unchanged": 0},
		}
		data, _ := json.Marshal(contract)
		return os.WriteFile(filepath.Join(runFolder, "maintain_actions.json"), data, 0o644)
	})

	result, err := p.Run(context.Background(), Options{Trigger: "test"})
	require.Error(t, err)
	assert.Equal(t, 1, result.ExitCode)
}
