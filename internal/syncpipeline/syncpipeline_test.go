package syncpipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lerim-dev/lerim/internal/adapters"
	"github.com/lerim-dev/lerim/internal/catalog"
	"github.com/lerim-dev/lerim/internal/config"
	"github.com/lerim-dev/lerim/internal/lock"
	"github.com/lerim-dev/lerim/internal/pathlayout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name    string
	records []adapters.SessionRecord
}

func (f *fakeAdapter) Name() string                      { return f.name }
func (f *fakeAdapter) DefaultPath() string                { return "" }
func (f *fakeAdapter) CountSessions(string) (int, error)  { return len(f.records), nil }
func (f *fakeAdapter) IterSessions(string, *time.Time, *time.Time, map[string]string) ([]adapters.SessionRecord, error) {
	return f.records, nil
}
func (f *fakeAdapter) FindSessionPath(string, string) (string, error) { return "", nil }
func (f *fakeAdapter) ReadSession(string, string) (*adapters.ViewerSession, error) {
	return nil, nil
}

func newTestPipeline(t *testing.T, invoker AgentInvoker, records []adapters.SessionRecord) *Pipeline {
	t.Helper()
	root := t.TempDir()
	layout := pathlayout.New(root, pathlayout.ScopeGlobal)
	require.NoError(t, layout.EnsureDirs())

	cat, err := catalog.Open(layout.SessionsDB())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	registry := adapters.NewRegistry()
	registry.Register(&fakeAdapter{name: "claude", records: records})

	return &Pipeline{
		Catalog:    cat,
		Registry:   registry,
		Layout:     layout,
		LockConfig: config.LockConfig{StaleSeconds: 60},
		Invoker:    invoker,
	}
}

// writeSyncArtifacts fills a claimed job's run folder with a well-formed
// artifact set so validateSyncArtifacts accepts it.
func writeSyncArtifacts(t *testing.T, runFolder, memoryRoot string, adds, updates, noOps int) {
	t.Helper()
	extract := map[string]any{"candidates": make([]map[string]any, adds+updates+noOps)}
	extractJSON, _ := json.Marshal(extract)
	require.NoError(t, os.WriteFile(filepath.Join(runFolder, "extract.json"), extractJSON, 0o644))

	summaryPath := filepath.Join(memoryRoot, "summaries", "20260101", "120000", "s.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(summaryPath), 0o755))
	require.NoError(t, os.WriteFile(summaryPath, []byte("summary"), 0o644))
	summary := map[string]any{"summary_path": summaryPath}
	summaryJSON, _ := json.Marshal(summary)
	require.NoError(t, os.WriteFile(filepath.Join(runFolder, "summary.json"), summaryJSON, 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(runFolder, "subagents.log"), []byte("log"), 0o644))

	contract := map[string]any{
		"counts":               map[string]int{"add": adds, "update": updates, "no_op": noOps},
		"written_memory_paths": []string{},
		"actions":              []any{},
		"trace_path":           "",
	}
	contractJSON, _ := json.Marshal(contract)
	require.NoError(t, os.WriteFile(filepath.Join(runFolder, "memory_actions.json"), contractJSON, 0o644))
}

func TestSyncPipelineAllJobsSucceedExitsZero(t *testing.T) {
	records := []adapters.SessionRecord{
		{RunID: "run-1", AgentType: "claude", SessionPath: "/traces/run-1.jsonl", Changed: true},
	}

	var p *Pipeline
	p = newTestPipeline(t, func(ctx context.Context, job catalog.QueueJob, runFolder string) error {
		writeSyncArtifacts(t, runFolder, p.Layout.Memory, 1, 0, 0)
		return nil
	}, records)

	summary, err := p.Run(context.Background(), Options{Trigger: "test"})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode)
	assert.Equal(t, 1, summary.ExtractedSessions)
	assert.Equal(t, 0, summary.FailedSessions)
	assert.Equal(t, 1, summary.LearningsNew)
}

// A session discovered and indexed by this very run still counts as
// progress even if its extraction then fails, so the cycle is not fatal
// (daemon.py: "elif failed > 0 and extracted == 0 and indexed_sessions ==
// 0"). Only when nothing was freshly indexed either does a fully-failed
// extraction pass become exit code 1; see
// TestSyncPipelineAllJobsFailWithNothingIndexedExitsOne.
func TestSyncPipelineAllJobsFailButSessionWasIndexedExitsZero(t *testing.T) {
	records := []adapters.SessionRecord{
		{RunID: "run-1", AgentType: "claude", SessionPath: "/traces/run-1.jsonl", Changed: true},
	}
	p := newTestPipeline(t, func(ctx context.Context, job catalog.QueueJob, runFolder string) error {
		return assert.AnError
	}, records)

	summary, err := p.Run(context.Background(), Options{Trigger: "test"})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode)
	assert.Equal(t, 1, summary.FailedSessions)
	assert.Equal(t, 0, summary.ExtractedSessions)
	assert.Equal(t, 1, summary.IndexedSessions)
}

func TestSyncPipelineAllJobsFailWithNothingIndexedExitsOne(t *testing.T) {
	p := newTestPipeline(t, func(ctx context.Context, job catalog.QueueJob, runFolder string) error {
		return assert.AnError
	}, nil)
	require.NoError(t, p.Catalog.IndexSession(catalog.SessionDoc{
		RunID:     "run-1",
		AgentType: "claude",
		Status:    "completed",
	}))

	summary, err := p.Run(context.Background(), Options{Trigger: "test", RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExitCode)
	assert.Equal(t, 1, summary.FailedSessions)
	assert.Equal(t, 0, summary.ExtractedSessions)
	assert.Equal(t, 0, summary.IndexedSessions)
}

func TestSyncPipelinePartialFailureExitsThree(t *testing.T) {
	records := []adapters.SessionRecord{
		{RunID: "run-ok", AgentType: "claude", SessionPath: "/traces/run-ok.jsonl", Changed: true},
		{RunID: "run-bad", AgentType: "claude", SessionPath: "/traces/run-bad.jsonl", Changed: true},
	}
	var p *Pipeline
	p = newTestPipeline(t, func(ctx context.Context, job catalog.QueueJob, runFolder string) error {
		if job.RunID == "run-bad" {
			return assert.AnError
		}
		writeSyncArtifacts(t, runFolder, p.Layout.Memory, 1, 0, 0)
		return nil
	}, records)

	summary, err := p.Run(context.Background(), Options{Trigger: "test", MaxSessions: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ExitCode)
	assert.Equal(t, 1, summary.ExtractedSessions)
	assert.Equal(t, 1, summary.FailedSessions)
}

func TestSyncPipelineDryRunSkipsLockAndAgent(t *testing.T) {
	records := []adapters.SessionRecord{
		{RunID: "run-1", AgentType: "claude", SessionPath: "/traces/run-1.jsonl", Changed: true},
	}
	invoked := false
	p := newTestPipeline(t, func(ctx context.Context, job catalog.QueueJob, runFolder string) error {
		invoked = true
		return nil
	}, records)

	summary, err := p.Run(context.Background(), Options{Trigger: "test", DryRun: true})
	require.NoError(t, err)
	assert.False(t, invoked)
	assert.Equal(t, 0, summary.ExitCode)
	assert.Equal(t, 1, summary.IndexedSessions)
}

func TestSyncPipelineWindowConflictIsRejected(t *testing.T) {
	p := newTestPipeline(t, func(ctx context.Context, job catalog.QueueJob, runFolder string) error {
		return nil
	}, nil)

	_, err := p.Run(context.Background(), Options{Window: "1d", Since: "2026-01-01T00:00:00Z"})
	require.Error(t, err)
}

func TestSyncPipelineNoExtractSkipsClaiming(t *testing.T) {
	records := []adapters.SessionRecord{
		{RunID: "run-1", AgentType: "claude", SessionPath: "/traces/run-1.jsonl", Changed: true},
	}
	invoked := false
	p := newTestPipeline(t, func(ctx context.Context, job catalog.QueueJob, runFolder string) error {
		invoked = true
		return nil
	}, records)

	summary, err := p.Run(context.Background(), Options{Trigger: "test", NoExtract: true})
	require.NoError(t, err)
	assert.False(t, invoked)
	assert.Equal(t, 0, summary.ExitCode)
	assert.Equal(t, 1, summary.SkippedSessions)
}

func TestSyncPipelineLockBusyExitsFour(t *testing.T) {
	p := newTestPipeline(t, func(ctx context.Context, job catalog.QueueJob, runFolder string) error {
		return nil
	}, nil)

	held := lock.New(p.Layout.WriterLock(), 60)
	require.NoError(t, held.Acquire("other-process", "lerim sync"))
	t.Cleanup(func() { _ = held.Release() })

	summary, err := p.Run(context.Background(), Options{Trigger: "test"})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.ExitCode)
}
