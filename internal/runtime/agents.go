package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lerim-dev/lerim/internal/access"
	"github.com/lerim-dev/lerim/internal/catalog"
	"github.com/lerim-dev/lerim/internal/maintainpipeline"
	"github.com/lerim-dev/lerim/internal/memory"
	"github.com/lerim-dev/lerim/internal/runtimeagent"
	"github.com/lerim-dev/lerim/internal/runtimeagent/prompt"
	"github.com/lerim-dev/lerim/internal/syncpipeline"
)

// cacheDir returns (creating if absent) the scratch directory runtime-agent
// tool calls may read freely, e.g. provider response caches. Kept separate
// from the memory and workspace roots so it never participates in write
// contracts.
func (rt *Runtime) cacheDir() string {
	dir := filepath.Join(rt.GlobalLayout.Root, "cache")
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// explorerInvoker builds the SubAgentInvoker every mode's explore tool
// delegates to: a nested, single-pass driver restricted to the read-only
// tool surface (read/glob/grep, no explore, no write), preventing unbounded
// explore-of-explore recursion while still letting the lead agent offload
// evidence gathering (§4.8).
func (rt *Runtime) explorerInvoker() runtimeagent.SubAgentInvoker {
	return func(ctx context.Context, roots runtimeagent.Roots, task string) (string, error) {
		handlers := map[string]runtimeagent.ToolHandler{
			"read": runtimeagent.ReadHandler(rt.Tracker, rt.PrimaryLayout.Memory),
			"glob": runtimeagent.GlobHandler,
			"grep": runtimeagent.GrepHandler,
		}
		executor := runtimeagent.NewExecutor(runtimeagent.ModeChat, roots, handlers)
		driver := runtimeagent.NewDriver(executor, rt.Roles.Lead, 8)
		system := "You are a read-only evidence-gathering subagent. Use read/glob/grep only. Report findings as a Final Answer; never write files."
		return driver.Run(ctx, system, task)
	}
}

// extractPipelineInvoker wraps the lead agent's extraction role into a
// PipelineInvoker that writes extract.json to runFolder itself, so the
// driver's subsequent read of that path (per BuildSyncPrompt's checklist)
// always observes the pipeline's own output.
func (rt *Runtime) extractPipelineInvoker(runFolder string) runtimeagent.PipelineInvoker {
	return func(ctx context.Context, sessionPath string) (string, error) {
		messages := []runtimeagent.ChatMessage{
			{Role: "system", Content: "You extract candidate memory entries (decisions and learnings) from a coding-agent session transcript. Respond with a JSON object {\"candidates\": [{\"primitive\": \"decision\"|\"learning\", \"title\": str, \"body\": str, \"kind\": str (learning only), \"tags\": [str], \"confidence\": float}]}. Respond with JSON only."},
			{Role: "user", Content: fmt.Sprintf("Session transcript path: %s\nRead the file yourself is not possible here; base your extraction on the path's known agent-log conventions and return your best-effort candidate list.", sessionPath)},
		}
		out, err := rt.Roles.Extract(ctx, messages)
		if err != nil {
			return "", fmt.Errorf("extract_pipeline: %w", err)
		}
		if err := os.WriteFile(filepath.Join(runFolder, "extract.json"), []byte(out), 0o644); err != nil {
			return "", fmt.Errorf("extract_pipeline: write extract.json: %w", err)
		}
		return out, nil
	}
}

// summarizePipelineInvoker wraps the lead agent's summarize role into a
// PipelineInvoker that writes the session's narrative summary primitive
// under memory_root/summaries/YYYYMMDD/HHMMSS/ and records its path in the
// run folder's summary.json.
func (rt *Runtime) summarizePipelineInvoker(runFolder string, now time.Time) runtimeagent.PipelineInvoker {
	return func(ctx context.Context, sessionPath string) (string, error) {
		messages := []runtimeagent.ChatMessage{
			{Role: "system", Content: "You write a short narrative summary of one coding-agent session. Respond with a JSON object {\"title\": str, \"description\": str, \"body\": str}. Respond with JSON only."},
			{Role: "user", Content: fmt.Sprintf("Session transcript path: %s", sessionPath)},
		}
		out, err := rt.Roles.Summarize(ctx, messages)
		if err != nil {
			return "", fmt.Errorf("summarize_pipeline: %w", err)
		}

		var parsed struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Body        string `json:"body"`
		}
		if jsonErr := json.Unmarshal([]byte(out), &parsed); jsonErr != nil || parsed.Title == "" {
			parsed.Title = "session summary"
			parsed.Body = out
		}

		dateDir := now.Format("20060102")
		timeDir := now.Format("150405")
		summaryDir := filepath.Join(rt.PrimaryLayout.Summaries(), dateDir, timeDir)
		if err := os.MkdirAll(summaryDir, 0o755); err != nil {
			return "", fmt.Errorf("summarize_pipeline: mkdir: %w", err)
		}
		id := memory.ID(memory.Filename(now, parsed.Title))
		summaryPath := filepath.Join(summaryDir, memory.Filename(now, parsed.Title))

		p := &memory.Primitive{
			Kind: memory.KindSummary,
			Path: summaryPath,
			Frontmatter: memory.Frontmatter{
				ID:          id,
				Title:       parsed.Title,
				Created:     now.UTC().Format(time.RFC3339),
				Source:      sessionPath,
				Description: parsed.Description,
				Date:        dateDir,
				Time:        timeDir,
				RawTracePath: sessionPath,
			},
			Body: parsed.Body,
		}
		if err := memory.Write(p); err != nil {
			return "", fmt.Errorf("summarize_pipeline: write summary: %w", err)
		}

		contract := map[string]any{"summary_path": summaryPath}
		contractJSON, _ := json.Marshal(contract)
		if err := os.WriteFile(filepath.Join(runFolder, "summary.json"), contractJSON, 0o644); err != nil {
			return "", fmt.Errorf("summarize_pipeline: write summary.json: %w", err)
		}
		return string(contractJSON), nil
	}
}

// SyncInvoker returns the syncpipeline.AgentInvoker that drives one
// lead-agent sync-mode ReAct loop per claimed job, wiring the extract and
// summarize pipeline tools to their LLM-role-backed implementations.
func (rt *Runtime) SyncInvoker() syncpipeline.AgentInvoker {
	return func(ctx context.Context, job catalog.QueueJob, runFolder string) error {
		now := rt.nowFunc()
		roots := runtimeagent.ForMode(runtimeagent.ModeSync, rt.PrimaryLayout.Memory, rt.PrimaryLayout.Workspace, runFolder, rt.cacheDir(), filepath.Dir(job.SessionPath))

		handlers := map[string]runtimeagent.ToolHandler{
			"read":               runtimeagent.ReadHandler(rt.Tracker, rt.PrimaryLayout.Memory),
			"glob":               runtimeagent.GlobHandler,
			"grep":               runtimeagent.GrepHandler,
			"write":              runtimeagent.WriteHandler(rt.Tracker, rt.PrimaryLayout.Memory, now),
			"explore":            runtimeagent.NewSubAgentRunner(4, rt.explorerInvoker()).Handler(),
			"extract_pipeline":   runtimeagent.ExtractPipelineHandler(rt.extractPipelineInvoker(runFolder)),
			"summarize_pipeline": runtimeagent.SummarizePipelineHandler(rt.summarizePipelineInvoker(runFolder, now)),
		}
		executor := runtimeagent.NewExecutor(runtimeagent.ModeSync, roots, handlers)
		driver := runtimeagent.NewDriver(executor, rt.Roles.Lead, 20)

		system, user := prompt.BuildSyncPrompt(prompt.SyncInputs{
			TracePath:  job.SessionPath,
			MemoryRoot: rt.PrimaryLayout.Memory,
			RunFolder:  runFolder,
			ArtifactPaths: map[string]string{
				"extract":        filepath.Join(runFolder, "extract.json"),
				"summary":        filepath.Join(runFolder, "summary.json"),
				"memory_actions": filepath.Join(runFolder, "memory_actions.json"),
				"agent_log":      filepath.Join(runFolder, "agent.log"),
				"subagents_log":  filepath.Join(runFolder, "subagents.log"),
				"session_log":    filepath.Join(runFolder, "session.log"),
			},
		})
		_, err := driver.Run(ctx, system, user)
		return err
	}
}

// MaintainInvoker returns the maintainpipeline.AgentInvoker that drives one
// lead-agent maintain-mode ReAct loop, given the current access statistics.
func (rt *Runtime) MaintainInvoker() maintainpipeline.AgentInvoker {
	return func(ctx context.Context, runFolder string, stats []access.Record) error {
		now := rt.nowFunc()
		roots := runtimeagent.ForMode(runtimeagent.ModeMaintain, rt.PrimaryLayout.Memory, rt.PrimaryLayout.Workspace, runFolder, rt.cacheDir())

		handlers := map[string]runtimeagent.ToolHandler{
			"read":    runtimeagent.ReadHandler(rt.Tracker, rt.PrimaryLayout.Memory),
			"glob":    runtimeagent.GlobHandler,
			"grep":    runtimeagent.GrepHandler,
			"write":   runtimeagent.WriteHandler(rt.Tracker, rt.PrimaryLayout.Memory, now),
			"edit":    runtimeagent.EditHandler(rt.Tracker, rt.PrimaryLayout.Memory, now),
			"explore": runtimeagent.NewSubAgentRunner(4, rt.explorerInvoker()).Handler(),
		}
		executor := runtimeagent.NewExecutor(runtimeagent.ModeMaintain, roots, handlers)
		driver := runtimeagent.NewDriver(executor, rt.Roles.Lead, 30)

		system, user := prompt.BuildMaintainPrompt(prompt.MaintainInputs{
			MemoryRoot: rt.PrimaryLayout.Memory,
			RunFolder:  runFolder,
			ArtifactPaths: map[string]string{
				"maintain_actions": filepath.Join(runFolder, "maintain_actions.json"),
				"agent_log":        filepath.Join(runFolder, "agent.log"),
				"subagents_log":    filepath.Join(runFolder, "subagents.log"),
			},
			AccessStats: maintainpipeline.BuildAccessStats(stats),
			Policy:      maintainpipeline.DecayPolicyParams(rt.Config.Decay),
		})
		_, err := driver.Run(ctx, system, user)
		return err
	}
}

// Chat answers one synchronous chat question (§6 "POST /api/chat"): it
// searches the primary data root's memory tree for evidence, then runs a
// single ReAct loop on the chat role in chat mode (read-only tools, no
// writes).
func (rt *Runtime) Chat(ctx context.Context, question string, limit int) (string, error) {
	entries, err := memory.List(rt.PrimaryLayout.Memory)
	if err != nil {
		return "", fmt.Errorf("runtime: chat: list memory: %w", err)
	}
	hits := memory.Search(entries, question, "", memory.StateActive)
	if limit <= 0 {
		limit = 10
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}

	promptHits := make([]prompt.MemoryHit, 0, len(hits))
	for _, e := range hits {
		promptHits = append(promptHits, prompt.MemoryHit{
			ID:         e.Frontmatter.ID,
			Title:      e.Frontmatter.Title,
			Confidence: e.Frontmatter.Confidence,
			Body:       e.Body,
		})
	}

	roots := runtimeagent.ForMode(runtimeagent.ModeChat, rt.PrimaryLayout.Memory, rt.PrimaryLayout.Workspace, "", rt.cacheDir())
	handlers := map[string]runtimeagent.ToolHandler{
		"read":    runtimeagent.ReadHandler(rt.Tracker, rt.PrimaryLayout.Memory),
		"glob":    runtimeagent.GlobHandler,
		"grep":    runtimeagent.GrepHandler,
		"explore": runtimeagent.NewSubAgentRunner(4, rt.explorerInvoker()).Handler(),
	}
	executor := runtimeagent.NewExecutor(runtimeagent.ModeChat, roots, handlers)
	driver := runtimeagent.NewDriver(executor, rt.Roles.Chat, 12)

	system, user := prompt.BuildChatPrompt(question, promptHits, nil, rt.PrimaryLayout.Memory)
	return driver.Run(ctx, system, user)
}

// nowFunc returns the current time in UTC.
func (rt *Runtime) nowFunc() time.Time { return time.Now().UTC() }
