package runtimeagent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ReActStep is one parsed LLM turn: either a tool invocation or a
// terminal answer, mirroring the teacher's ParsedReActResponse shape but
// simplified to the single Thought/Action/Action Input/Final Answer
// grammar this agent's prompts teach (no multi-strategy recovery parsing —
// a malformed turn gets one corrective nudge instead).
type ReActStep struct {
	Thought       string
	HasAction     bool
	Action        string
	ActionInput   string
	IsFinalAnswer bool
	FinalAnswer   string
}

var (
	finalAnswerPattern = regexp.MustCompile(`(?is)Final Answer:\s*(.*)`)
	actionPattern      = regexp.MustCompile(`(?im)^\s*Action:\s*(.+)$`)
	actionInputPattern = regexp.MustCompile(`(?is)Action Input:\s*(.*)`)
	thoughtPattern     = regexp.MustCompile(`(?is)Thought:\s*(.*?)(?:\n\s*(?:Action|Final Answer):|$)`)
)

// ParseReActStep extracts a Thought/Action/Action Input or Final Answer
// turn from raw LLM text. A Final Answer section always wins over a
// trailing Action section, since a final answer is terminal.
func ParseReActStep(text string) ReActStep {
	var step ReActStep
	if m := thoughtPattern.FindStringSubmatch(text); m != nil {
		step.Thought = strings.TrimSpace(m[1])
	}

	if m := finalAnswerPattern.FindStringSubmatch(text); m != nil {
		step.IsFinalAnswer = true
		step.FinalAnswer = strings.TrimSpace(m[1])
		return step
	}

	actionMatch := actionPattern.FindStringSubmatch(text)
	if actionMatch == nil {
		return step
	}
	step.HasAction = true
	step.Action = strings.TrimSpace(actionMatch[1])
	if m := actionInputPattern.FindStringSubmatch(text); m != nil {
		step.ActionInput = strings.TrimSpace(m[1])
	}
	return step
}

// CompletionFunc sends the running conversation to a model role and
// returns its raw text reply. Callers typically pass a RoleDispatcher
// method (Lead, Chat, ...) bound to one of the four LLM roles.
type CompletionFunc func(ctx context.Context, messages []ChatMessage) (string, error)

// Driver runs the ReAct loop for one runtime-agent invocation: calls the
// model, parses its turn, executes any tool call through Executor, and
// feeds the observation back, until a Final Answer arrives or
// maxIterations is exhausted (§4.8, grounded on the teacher's
// ReActController.Run iteration loop).
type Driver struct {
	executor      *Executor
	complete      CompletionFunc
	maxIterations int
}

// NewDriver builds a ReAct driver bound to one tool executor and model
// completion function.
func NewDriver(executor *Executor, complete CompletionFunc, maxIterations int) *Driver {
	if maxIterations <= 0 {
		maxIterations = 20
	}
	return &Driver{executor: executor, complete: complete, maxIterations: maxIterations}
}

// malformedNudge is appended when a turn is neither a valid Action nor a
// Final Answer, asking the model to retry in the expected grammar.
const malformedNudge = "Your previous reply did not match the required format. " +
	"Respond with either \"Action:\"/\"Action Input:\" or \"Final Answer:\"."

// Run drives the loop to completion and returns the model's final answer
// text.
func (d *Driver) Run(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	for i := 0; i < d.maxIterations; i++ {
		reply, err := d.complete(ctx, messages)
		if err != nil {
			return "", fmt.Errorf("runtimeagent: model call failed: %w", err)
		}
		messages = append(messages, ChatMessage{Role: "assistant", Content: reply})

		step := ParseReActStep(reply)
		switch {
		case step.IsFinalAnswer:
			return step.FinalAnswer, nil
		case step.HasAction:
			call := ToolCall{ID: fmt.Sprintf("iter-%d", i), Name: step.Action, Arguments: step.ActionInput}
			result, err := d.executor.Execute(ctx, call)
			if err != nil {
				return "", fmt.Errorf("runtimeagent: executing %s: %w", step.Action, err)
			}
			observation := "Observation: " + result.Content
			if result.IsError {
				observation = "Observation (error): " + result.Content
			}
			messages = append(messages, ChatMessage{Role: "user", Content: observation})
		default:
			messages = append(messages, ChatMessage{Role: "user", Content: malformedNudge})
		}
	}

	return "", fmt.Errorf("runtimeagent: exceeded max iterations (%d) without a final answer", d.maxIterations)
}
