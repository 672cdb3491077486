package runtimeagent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPipelineHandlerInvokesAndReturnsOutput(t *testing.T) {
	dir := t.TempDir()
	sessionPath := filepath.Join(dir, "trace.jsonl")
	require.NoError(t, os.WriteFile(sessionPath, []byte("{}"), 0o644))

	handler := ExtractPipelineHandler(func(ctx context.Context, path string) (string, error) {
		assert.Equal(t, sessionPath, path)
		return `{"candidates":[]}`, nil
	})
	args, _ := json.Marshal(pipelineArgs{SessionPath: sessionPath})
	result, err := handler(context.Background(), ToolCall{ID: "1", Name: "extract_pipeline", Arguments: string(args)}, Roots{Read: []string{dir}})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, `{"candidates":[]}`, result.Content)
}

func TestExtractPipelineHandlerRejectsSessionOutsideReadRoots(t *testing.T) {
	handler := ExtractPipelineHandler(func(ctx context.Context, path string) (string, error) {
		t.Fatal("invoker should not run")
		return "", nil
	})
	args, _ := json.Marshal(pipelineArgs{SessionPath: "/etc/passwd"})
	result, err := handler(context.Background(), ToolCall{ID: "1", Name: "extract_pipeline", Arguments: string(args)}, Roots{Read: []string{t.TempDir()}})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSummarizePipelineHandlerInvokesAndReturnsOutput(t *testing.T) {
	dir := t.TempDir()
	sessionPath := filepath.Join(dir, "trace.jsonl")
	require.NoError(t, os.WriteFile(sessionPath, []byte("{}"), 0o644))

	handler := SummarizePipelineHandler(func(ctx context.Context, path string) (string, error) {
		return "summary text", nil
	})
	args, _ := json.Marshal(pipelineArgs{SessionPath: sessionPath})
	result, err := handler(context.Background(), ToolCall{ID: "1", Name: "summarize_pipeline", Arguments: string(args)}, Roots{Read: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, "summary text", result.Content)
}

func TestSummarizePipelineHandlerPropagatesInvokerError(t *testing.T) {
	dir := t.TempDir()
	sessionPath := filepath.Join(dir, "trace.jsonl")
	require.NoError(t, os.WriteFile(sessionPath, []byte("{}"), 0o644))

	handler := SummarizePipelineHandler(func(ctx context.Context, path string) (string, error) {
		return "", assert.AnError
	})
	args, _ := json.Marshal(pipelineArgs{SessionPath: sessionPath})
	result, err := handler(context.Background(), ToolCall{ID: "1", Name: "summarize_pipeline", Arguments: string(args)}, Roots{Read: []string{dir}})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
