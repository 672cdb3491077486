package runtimeagent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReActStepFinalAnswer(t *testing.T) {
	step := ParseReActStep("Thought: done thinking\nFinal Answer: the result")
	assert.True(t, step.IsFinalAnswer)
	assert.Equal(t, "the result", step.FinalAnswer)
	assert.Equal(t, "done thinking", step.Thought)
}

func TestParseReActStepAction(t *testing.T) {
	step := ParseReActStep("Thought: need to read a file\nAction: read\nAction Input: {\"path\":\"x.md\"}")
	assert.True(t, step.HasAction)
	assert.Equal(t, "read", step.Action)
	assert.Equal(t, `{"path":"x.md"}`, step.ActionInput)
}

func TestParseReActStepMalformed(t *testing.T) {
	step := ParseReActStep("I am thinking about things.")
	assert.False(t, step.HasAction)
	assert.False(t, step.IsFinalAnswer)
}

func TestDriverRunExecutesToolThenReturnsFinalAnswer(t *testing.T) {
	calls := 0
	handlers := map[string]ToolHandler{
		"read": func(ctx context.Context, call ToolCall, roots Roots) (*ToolResult, error) {
			return &ToolResult{CallID: call.ID, Name: call.Name, Content: "file contents"}, nil
		},
	}
	executor := NewExecutor(ModeChat, Roots{Read: []string{"/tmp"}}, handlers)

	complete := func(ctx context.Context, messages []ChatMessage) (string, error) {
		calls++
		if calls == 1 {
			return "Thought: look it up\nAction: read\nAction Input: {\"path\":\"/tmp/x.md\"}", nil
		}
		return "Thought: got it\nFinal Answer: the answer is 42", nil
	}

	driver := NewDriver(executor, complete, 5)
	answer, err := driver.Run(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "the answer is 42", answer)
	assert.Equal(t, 2, calls)
}

func TestDriverRunNudgesOnMalformedReply(t *testing.T) {
	calls := 0
	executor := NewExecutor(ModeChat, Roots{}, map[string]ToolHandler{})

	var sawNudge bool
	complete := func(ctx context.Context, messages []ChatMessage) (string, error) {
		calls++
		if calls == 1 {
			return "I am just rambling with no structure.", nil
		}
		last := messages[len(messages)-1]
		if last.Content == malformedNudge {
			sawNudge = true
		}
		return "Thought: ok\nFinal Answer: done", nil
	}

	driver := NewDriver(executor, complete, 5)
	answer, err := driver.Run(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "done", answer)
	assert.True(t, sawNudge)
}

func TestDriverRunReturnsErrorAfterMaxIterations(t *testing.T) {
	executor := NewExecutor(ModeChat, Roots{}, map[string]ToolHandler{})
	complete := func(ctx context.Context, messages []ChatMessage) (string, error) {
		return "still thinking, no action or final answer", nil
	}
	driver := NewDriver(executor, complete, 2)
	_, err := driver.Run(context.Background(), "system", "user")
	require.Error(t, err)
}
