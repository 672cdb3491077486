package runtimeagent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubAgentRunnerDispatchesAndReturnsOutput(t *testing.T) {
	runner := NewSubAgentRunner(2, func(ctx context.Context, roots Roots, task string) (string, error) {
		return "evidence for: " + task, nil
	})
	handler := runner.Handler()

	args, err := json.Marshal(exploreArgs{Task: "find deploy notes"})
	require.NoError(t, err)
	result, err := handler(context.Background(), ToolCall{ID: "1", Name: "explore", Arguments: string(args)}, Roots{Read: []string{"/mem"}, Write: []string{"/mem"}})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "evidence for: find deploy notes", result.Content)
}

func TestSubAgentRunnerPassesReadOnlyRoots(t *testing.T) {
	var seenWrite []string
	runner := NewSubAgentRunner(1, func(ctx context.Context, roots Roots, task string) (string, error) {
		seenWrite = roots.Write
		return "ok", nil
	})
	handler := runner.Handler()
	args, _ := json.Marshal(exploreArgs{Task: "t"})
	_, err := handler(context.Background(), ToolCall{ID: "1", Name: "explore", Arguments: string(args)}, Roots{Read: []string{"/mem"}, Write: []string{"/mem"}})
	require.NoError(t, err)
	assert.Nil(t, seenWrite)
}

func TestSubAgentRunnerEnforcesConcurrencyBound(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	runner := NewSubAgentRunner(1, func(ctx context.Context, roots Roots, task string) (string, error) {
		started <- struct{}{}
		<-release
		return "done", nil
	})
	handler := runner.Handler()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		args, _ := json.Marshal(exploreArgs{Task: "first"})
		_, _ = handler(context.Background(), ToolCall{ID: "1", Name: "explore", Arguments: string(args)}, Roots{})
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first explore call never started")
	}

	args, _ := json.Marshal(exploreArgs{Task: "second"})
	result, err := handler(context.Background(), ToolCall{ID: "2", Name: "explore", Arguments: string(args)}, Roots{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "max concurrent")

	close(release)
	wg.Wait()
}

func TestSubAgentRunnerBadArgumentsReturnsErrorResult(t *testing.T) {
	runner := NewSubAgentRunner(1, func(ctx context.Context, roots Roots, task string) (string, error) {
		return "unreachable", nil
	})
	handler := runner.Handler()
	result, err := handler(context.Background(), ToolCall{ID: "1", Name: "explore", Arguments: "not json"}, Roots{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
