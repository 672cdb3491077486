package runtimeagent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// SubAgentInvoker runs one delegated explorer task and returns its final
// text. It is injected by the caller (wired to an LLM role provider) so
// this package stays free of any concrete LLM client dependency.
type SubAgentInvoker func(ctx context.Context, roots Roots, task string) (string, error)

// SubAgentRunner bounds concurrent explore delegations, mirroring the
// teacher's SubAgentRunner.Dispatch reservation pattern (reserve a slot
// before starting, release it when the goroutine finishes) — generalized
// here from an async dispatch/collect protocol to a synchronous
// bounded-semaphore call, since explore results are consumed inline by the
// ReAct loop rather than fanned out across a session's lifetime.
type SubAgentRunner struct {
	mu       sync.Mutex
	active   int
	maxAgents int
	invoker  SubAgentInvoker
}

// NewSubAgentRunner builds a runner that allows at most maxConcurrent
// explore delegations in flight at once.
func NewSubAgentRunner(maxConcurrent int, invoker SubAgentInvoker) *SubAgentRunner {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &SubAgentRunner{maxAgents: maxConcurrent, invoker: invoker}
}

var errMaxConcurrentAgents = fmt.Errorf("explore: max concurrent sub-agents reached")

func (r *SubAgentRunner) reserve() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active >= r.maxAgents {
		return errMaxConcurrentAgents
	}
	r.active++
	return nil
}

func (r *SubAgentRunner) release() {
	r.mu.Lock()
	r.active--
	r.mu.Unlock()
}

// exploreArgs is the JSON argument shape for the explore tool.
type exploreArgs struct {
	Task string `json:"task"`
}

// Handler returns a ToolHandler that delegates to r.invoker, enforcing the
// concurrency bound and the caller's read-only roots (explorer subagents
// never receive write roots — §4.8: "explorer subagents are read-only").
func (r *SubAgentRunner) Handler() ToolHandler {
	return func(ctx context.Context, call ToolCall, roots Roots) (*ToolResult, error) {
		var args exploreArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errorResult(call, fmt.Sprintf("explore: bad arguments: %v", err)), nil
		}

		if err := r.reserve(); err != nil {
			return errorResult(call, err.Error()), nil
		}
		defer r.release()

		readOnly := Roots{Read: roots.Read}
		output, err := r.invoker(ctx, readOnly, args.Task)
		if err != nil {
			return errorResult(call, fmt.Sprintf("explore: %v", err)), nil
		}
		return &ToolResult{CallID: call.ID, Name: call.Name, Content: output}, nil
	}
}
