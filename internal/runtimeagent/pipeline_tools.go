package runtimeagent

import (
	"context"
	"encoding/json"
	"fmt"
)

// PipelineInvoker runs one LLM-driven extraction or summarization pass over
// a session transcript and returns its raw JSON output, which the handler
// passes back as the tool result. The invoker itself writes the run
// folder's extract.json/summary.json artifact.
// Injected so this package never depends on a concrete LLM client.
type PipelineInvoker func(ctx context.Context, sessionPath string) (string, error)

// pipelineArgs is the JSON argument shape shared by extract_pipeline and
// summarize_pipeline.
type pipelineArgs struct {
	SessionPath string `json:"session_path"`
}

// ExtractPipelineHandler delegates to invoker to produce extract.json's
// candidate list (sync mode only — §4.8).
func ExtractPipelineHandler(invoker PipelineInvoker) ToolHandler {
	return func(ctx context.Context, call ToolCall, roots Roots) (*ToolResult, error) {
		var args pipelineArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errorResult(call, fmt.Sprintf("extract_pipeline: bad arguments: %v", err)), nil
		}
		if _, err := roots.CheckRead(args.SessionPath); err != nil {
			return errorResult(call, err.Error()), nil
		}
		out, err := invoker(ctx, args.SessionPath)
		if err != nil {
			return errorResult(call, fmt.Sprintf("extract_pipeline: %v", err)), nil
		}
		return &ToolResult{CallID: call.ID, Name: call.Name, Content: out}, nil
	}
}

// SummarizePipelineHandler delegates to invoker to produce summary.json's
// session narrative (sync mode only — §4.8).
func SummarizePipelineHandler(invoker PipelineInvoker) ToolHandler {
	return func(ctx context.Context, call ToolCall, roots Roots) (*ToolResult, error) {
		var args pipelineArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errorResult(call, fmt.Sprintf("summarize_pipeline: bad arguments: %v", err)), nil
		}
		if _, err := roots.CheckRead(args.SessionPath); err != nil {
			return errorResult(call, err.Error()), nil
		}
		out, err := invoker(ctx, args.SessionPath)
		if err != nil {
			return errorResult(call, fmt.Sprintf("summarize_pipeline: %v", err)), nil
		}
		return &ToolResult{CallID: call.ID, Name: call.Name, Content: out}, nil
	}
}
