package runtimeagent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lerim-dev/lerim/internal/access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func openTestTracker(t *testing.T) *access.Tracker {
	t.Helper()
	tr, err := access.Open(filepath.Join(t.TempDir(), "memories.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func writeCall(t *testing.T, name string, args any) ToolCall {
	t.Helper()
	data, err := json.Marshal(args)
	require.NoError(t, err)
	return ToolCall{ID: "call-1", Name: name, Arguments: string(data)}
}

func TestReadHandlerReturnsFileContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("line1\nline2\nline3\n"), 0o644))

	handler := ReadHandler(nil, "")
	roots := Roots{Read: []string{dir}}
	result, err := handler(context.Background(), writeCall(t, "read", readArgs{Path: path}), roots)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "line1")
}

func TestReadHandlerRejectsOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	handler := ReadHandler(nil, "")
	roots := Roots{Read: []string{dir}}
	result, err := handler(context.Background(), writeCall(t, "read", readArgs{Path: "/etc/passwd"}), roots)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestReadHandlerRecordsQualifyingReadOnly(t *testing.T) {
	dir := t.TempDir()
	tracker := openTestTracker(t)
	path := filepath.Join(dir, "decisions", "20260101-deploy-tips.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("---\nid: x\n---\nbody\n"), 0o644))
	roots := Roots{Read: []string{dir}}
	handler := ReadHandler(tracker, dir)

	_, err := handler(context.Background(), writeCall(t, "read", readArgs{Path: path, Limit: 5}), roots)
	require.NoError(t, err)
	rec, err := tracker.Get("20260101-deploy-tips", dir)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = handler(context.Background(), writeCall(t, "read", readArgs{Path: path}), roots)
	require.NoError(t, err)
	rec, err = tracker.Get("20260101-deploy-tips", dir)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.AccessCount)
}

func TestGlobHandlerMatchesPattern(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644))
	roots := Roots{Read: []string{dir}}

	result, err := GlobHandler(context.Background(), writeCall(t, "glob", globArgs{Pattern: "*.md", Root: dir}), roots)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "a.md")
	assert.NotContains(t, result.Content, "b.txt")
}

func TestGrepHandlerFindsMatchingLine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("hello\nneedle here\nbye\n"), 0o644))
	roots := Roots{Read: []string{dir}}

	result, err := GrepHandler(context.Background(), writeCall(t, "grep", grepArgs{Pattern: "needle", Root: dir}), roots)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "needle here")
}

func TestWriteHandlerWritesFileAtomically(t *testing.T) {
	dir := t.TempDir()
	roots := Roots{Write: []string{dir}}
	handler := WriteHandler(nil, "", testNow)
	path := filepath.Join(dir, "scratch", "notes.md")

	result, err := handler(context.Background(), writeCall(t, "write", writeArgs{Path: path, Content: "hello"}), roots)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteHandlerRejectsOutsideWriteRoot(t *testing.T) {
	dir := t.TempDir()
	roots := Roots{Write: []string{dir}}
	handler := WriteHandler(nil, "", testNow)
	result, err := handler(context.Background(), writeCall(t, "write", writeArgs{Path: "/tmp/escape.md", Content: "x"}), roots)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestWriteHandlerNormalizesMemoryFileFilenameAndFrontmatter(t *testing.T) {
	dir := t.TempDir()
	memoryRoot := filepath.Join(dir, "memory")
	tracker := openTestTracker(t)
	roots := Roots{Write: []string{memoryRoot}}
	handler := WriteHandler(tracker, memoryRoot, testNow)

	// The agent proposes its own filename and omits created/updated/source —
	// the handler must ignore the proposed name and derive the canonical one
	// from the frontmatter title instead.
	proposedPath := filepath.Join(memoryRoot, "decisions", "whatever-the-agent-typed.md")
	content := "---\ntitle: Use SQLite for the catalog\n---\n\nBecause it needs zero ops.\n"

	result, err := handler(context.Background(), writeCall(t, "write", writeArgs{Path: proposedPath, Content: content}), roots)
	require.NoError(t, err)
	require.False(t, result.IsError)

	wantPath := filepath.Join(memoryRoot, "decisions", "20260201-use-sqlite-for-the-catalog.md")
	data, err := os.ReadFile(wantPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "id: 20260201-use-sqlite-for-the-catalog")
	assert.Contains(t, string(data), "source: agent")
	assert.Contains(t, string(data), `created: "2026-02-01T12:00:00Z"`)
	assert.Contains(t, string(data), `updated: "2026-02-01T12:00:00Z"`)
	assert.Contains(t, string(data), "Because it needs zero ops.")

	rec, err := tracker.Get("20260201-use-sqlite-for-the-catalog", memoryRoot)
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestWriteHandlerRejectsMemoryFileWithoutTitle(t *testing.T) {
	dir := t.TempDir()
	memoryRoot := filepath.Join(dir, "memory")
	roots := Roots{Write: []string{memoryRoot}}
	handler := WriteHandler(nil, memoryRoot, testNow)

	path := filepath.Join(memoryRoot, "learnings", "anything.md")
	result, err := handler(context.Background(), writeCall(t, "write", writeArgs{Path: path, Content: "---\nsource: run-1\n---\n\nbody\n"}), roots)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "title is required")
}

func TestWriteHandlerRejectsSummariesWrite(t *testing.T) {
	dir := t.TempDir()
	memoryRoot := filepath.Join(dir, "memory")
	require.NoError(t, os.MkdirAll(filepath.Join(memoryRoot, "summaries"), 0o755))
	roots := Roots{Write: []string{memoryRoot}}
	handler := WriteHandler(nil, memoryRoot, testNow)

	path := filepath.Join(memoryRoot, "summaries", "20260201-123456.md")
	result, err := handler(context.Background(), writeCall(t, "write", writeArgs{Path: path, Content: "anything"}), roots)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "reserved for the summarize pipeline")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEditHandlerReplacesExactMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("before middle after"), 0o644))
	roots := Roots{Write: []string{dir}}
	handler := EditHandler(nil, "", testNow)

	result, err := handler(context.Background(), writeCall(t, "edit", editArgs{Path: path, OldText: "middle", NewText: "CENTER"}), roots)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "before CENTER after", string(data))
}

func TestEditHandlerErrorsWhenOldTextMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))
	roots := Roots{Write: []string{dir}}
	handler := EditHandler(nil, "", testNow)

	result, err := handler(context.Background(), writeCall(t, "edit", editArgs{Path: path, OldText: "missing", NewText: "x"}), roots)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "old_text not found")
}

func TestEditHandlerRejectsSummaryEdit(t *testing.T) {
	dir := t.TempDir()
	memoryRoot := filepath.Join(dir, "memory")
	summaryPath := filepath.Join(memoryRoot, "summaries", "20260201-103000.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(summaryPath), 0o755))
	require.NoError(t, os.WriteFile(summaryPath, []byte("---\ntitle: x\n---\n\nbody\n"), 0o644))
	roots := Roots{Write: []string{memoryRoot}}
	handler := EditHandler(nil, memoryRoot, testNow)

	result, err := handler(context.Background(), writeCall(t, "edit", editArgs{Path: summaryPath, OldText: "body", NewText: "changed"}), roots)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "reserved for the summarize pipeline")
}
