package runtimeagent

import "context"

// Mode selects which tool surface and prompt a runtime-agent invocation
// gets (§4.8).
type Mode string

const (
	ModeChat     Mode = "chat"
	ModeSync     Mode = "sync"
	ModeMaintain Mode = "maintain"
)

// ToolCall is one LLM-issued tool invocation, mirroring the teacher's
// agent.ToolCall shape (name plus a JSON argument blob).
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// ToolResult is the outcome of one ToolCall, mirroring agent.ToolResult.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// toolsByMode lists which tool names each mode's surface exposes (§4.8
// "Tool surface"). Names not in this set for the active mode are rejected
// by Dispatch before any handler runs.
var toolsByMode = map[Mode]map[string]bool{
	ModeChat: {
		"read": true, "glob": true, "grep": true, "explore": true,
	},
	ModeSync: {
		"read": true, "glob": true, "grep": true, "explore": true,
		"write": true, "extract_pipeline": true, "summarize_pipeline": true,
	},
	ModeMaintain: {
		"read": true, "glob": true, "grep": true, "explore": true,
		"write": true, "edit": true,
	},
}

// AllowedTools returns the tool names exposed for mode.
func AllowedTools(mode Mode) []string {
	names := make([]string, 0, len(toolsByMode[mode]))
	for name := range toolsByMode[mode] {
		names = append(names, name)
	}
	return names
}

// ToolHandler executes one named tool call within a boundary.
type ToolHandler func(ctx context.Context, call ToolCall, roots Roots) (*ToolResult, error)

// Executor dispatches ToolCalls to registered handlers, rejecting any tool
// not in the active mode's surface before the handler ever sees the call
// (§4.8, §7 "BoundaryError ... raised synchronously").
type Executor struct {
	mode     Mode
	roots    Roots
	handlers map[string]ToolHandler
}

// NewExecutor builds a tool executor scoped to one mode and its roots,
// with the given handler set (callers register only the handlers relevant
// to their subsystem — the sync pipeline needs extract_pipeline/
// summarize_pipeline, maintain does not).
func NewExecutor(mode Mode, roots Roots, handlers map[string]ToolHandler) *Executor {
	return &Executor{mode: mode, roots: roots, handlers: handlers}
}

// Execute runs call if it is both in the mode's tool surface and has a
// registered handler; otherwise it returns a structured error result
// rather than failing the whole cycle (§4.8: "the tool fails with a
// structured error; the core never silently allows escape").
func (e *Executor) Execute(ctx context.Context, call ToolCall) (*ToolResult, error) {
	allowed := toolsByMode[e.mode]
	if !allowed[call.Name] {
		return &ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: "tool " + call.Name + " is not available in " + string(e.mode) + " mode",
			IsError: true,
		}, nil
	}
	handler, ok := e.handlers[call.Name]
	if !ok {
		return &ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: "tool " + call.Name + " has no handler registered",
			IsError: true,
		}, nil
	}
	return handler(ctx, call, e.roots)
}
