package runtimeagent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedToolsPerMode(t *testing.T) {
	assert.ElementsMatch(t, AllowedTools(ModeChat), []string{"read", "glob", "grep", "explore"})
	assert.ElementsMatch(t, AllowedTools(ModeSync),
		[]string{"read", "glob", "grep", "explore", "write", "extract_pipeline", "summarize_pipeline"})
	assert.ElementsMatch(t, AllowedTools(ModeMaintain),
		[]string{"read", "glob", "grep", "explore", "write", "edit"})
}

func TestExecuteRejectsToolOutsideModeSurface(t *testing.T) {
	e := NewExecutor(ModeChat, Roots{}, map[string]ToolHandler{
		"write": func(ctx context.Context, call ToolCall, roots Roots) (*ToolResult, error) {
			return &ToolResult{CallID: call.ID, Content: "should not run"}, nil
		},
	})
	result, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "write", Arguments: "{}"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "not available in chat mode")
}

func TestExecuteRejectsToolWithNoRegisteredHandler(t *testing.T) {
	e := NewExecutor(ModeChat, Roots{}, map[string]ToolHandler{})
	result, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "read", Arguments: "{}"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "no handler registered")
}

func TestExecuteDispatchesToRegisteredHandler(t *testing.T) {
	called := false
	e := NewExecutor(ModeChat, Roots{}, map[string]ToolHandler{
		"read": func(ctx context.Context, call ToolCall, roots Roots) (*ToolResult, error) {
			called = true
			return &ToolResult{CallID: call.ID, Content: "ok"}, nil
		},
	})
	result, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "read", Arguments: "{}"})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", result.Content)
	assert.False(t, result.IsError)
}
