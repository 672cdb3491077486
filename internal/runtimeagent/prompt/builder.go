package prompt

import "fmt"

// systemPreamble is the shared rule set every mode's system message opens
// with, mirroring the original runtime's compact lead-agent instructions.
const systemPreamble = `You are the Lerim lead runtime agent.
Rules:
- Keep memory operations deterministic and explicit.
- Use tools for filesystem actions; never fabricate file content.
- Keep writes inside the memory and workspace boundaries you were given.
- Delegate read-only evidence gathering to the explore tool.
- You can issue up to 4 explore calls in the same tool-call turn when the queries are independent.
- Prefer concise, structured outputs.

Tool-calling format:
Respond with either a tool call or a final answer, never both.
To call a tool:
Thought: <brief reasoning>
Action: <tool name>
Action Input: <JSON object of arguments>
To conclude:
Thought: <brief reasoning>
Final Answer: <final text>
Wait for the Observation before continuing; never invent an Observation yourself.`

const memorySchemaRules = `Memory file schema:
- YAML frontmatter between --- delimiters, then a markdown body.
- Frontmatter fields: id, title, created, updated, confidence, tags, and kind (learnings only).
- Use explicit ids in any cross-reference; no wikilink syntax.`

// BuildChatPrompt assembles the system and user messages for one chat turn,
// given the retrieved memory evidence and optional loaded context docs.
func BuildChatPrompt(question string, hits []MemoryHit, contextDocs []string, memoryRoot string) (system, user string) {
	system = systemPreamble + "\n" + FormatMemoryGuidance(memoryRoot)

	contextBlock := "(no context docs loaded)"
	if len(contextDocs) > 0 {
		contextBlock = ""
		for i, doc := range contextDocs {
			contextBlock += "- " + doc
			if i < len(contextDocs)-1 {
				contextBlock += "\n"
			}
		}
	}

	user = fmt.Sprintf(`Answer the user question using the memory evidence below.
Retrieval contract:
- You handle retrieval strategy.
- Delegate the explore tool for two-phase memory retrieval (frontmatter scan, then full read).
- Search project-scoped memory first, then fall back to global memory.
- Return evidence with file paths.
- If memory is missing or uncertain, say so clearly.
- Cite memory ids you used.

Question:
%s

Memory evidence:
%s

Context docs (loaded only if needed):
%s
`, question, FormatMemoryEvidence(hits), contextBlock)

	return system, user
}

// SyncInputs carries everything BuildSyncPrompt needs to describe one
// extract+summarize+decide+write cycle over a single session transcript.
type SyncInputs struct {
	TracePath     string
	MemoryRoot    string
	RunFolder     string
	ArtifactPaths map[string]string // keys: extract, summary, memory_actions, agent_log, subagents_log, session_log
}

var syncArtifactOrder = []string{"extract", "summary", "memory_actions", "agent_log", "subagents_log", "session_log"}

// BuildSyncPrompt assembles the system and user messages for a sync-mode
// invocation: run extract_pipeline and summarize_pipeline in parallel,
// match candidates against existing memory via explore, decide add/update/
// no_op, and write the memory_actions.json report (§4.5).
func BuildSyncPrompt(in SyncInputs) (system, user string) {
	system = systemPreamble

	user = fmt.Sprintf(`Run the memory write flow for one session.

Inputs:
- trace_path: %s
- memory_root: %s
- run_folder: %s (use this for intermediate files)
- artifact_paths:
%s

Checklist:
- validate_inputs
- PARALLEL: call extract_pipeline AND summarize_pipeline in the SAME tool-call turn -- they are independent, both read the raw trace
- explore for matching candidates against existing memory
- decide_add_update_no_op
- write memory files
- write the run decision report

%s

Execution rules:
- Do not inline or normalize trace content; use only trace_path file access.
- Call extract_pipeline and summarize_pipeline together in the same response turn so they run in parallel.
- Read extract.json from the artifact path once the pipeline call returns.
- The summarize pipeline writes the summary file under memory_root/summaries/ and its pointer to the summary artifact. Do not write summary files yourself.
- For candidate matching, delegate to explore(task) to gather evidence; the explorer is read-only.
- You are the only writer and the final decider.
- Deterministic decision policy for non-summary candidates:
  - no_op when the matched memory has the exact same primitive, title, and body.
  - update when the primitive matches and the token-overlap score is >= 0.72.
  - add otherwise.
- Write markdown memory files with YAML frontmatter under memory_root/decisions or memory_root/learnings using the write tool.
- If extract returns zero candidates, write an empty JSONL file to the subagents_log artifact (explorer is skipped).
- Write explorer outputs to the subagents_log artifact as JSONL.
- Write the run report JSON to the memory_actions artifact with keys: run_id, actions, counts, written_memory_paths, trace_path.
- Include the overlap score as evidence in actions when the action is update or no_op.
- counts keys must be exactly: add, update, no_op.
- Every written or updated file path in the report must be absolute.

Return one short plain-text completion line.`,
		in.TracePath, in.MemoryRoot, in.RunFolder, FormatArtifactPaths(in.ArtifactPaths, syncArtifactOrder), memorySchemaRules)

	return system, user
}

// MaintainInputs carries everything BuildMaintainPrompt needs to describe
// one offline maintenance pass.
type MaintainInputs struct {
	MemoryRoot    string
	RunFolder     string
	ArtifactPaths map[string]string // keys: maintain_actions, agent_log, subagents_log
	AccessStats   []AccessStat
	Policy        DecayPolicyParams
}

var maintainArtifactOrder = []string{"maintain_actions", "agent_log", "subagents_log"}

// BuildMaintainPrompt assembles the system and user messages for a
// maintain-mode invocation: scan, dedupe, merge, archive, decay-check, and
// consolidate existing memory, then write maintain_actions.json (§4.6).
func BuildMaintainPrompt(in MaintainInputs) (system, user string) {
	system = systemPreamble

	user = fmt.Sprintf(`You are running memory maintenance -- an offline refinement pass over existing memories.
This mimics how human memory works: consolidate, strengthen important memories, forget noise.

Inputs:
- memory_root: %s
- run_folder: %s (use this for intermediate files)
- artifact_paths:
%s

Checklist:
- scan_memories
- analyze_duplicates
- merge_similar
- archive_low_value
- decay_check
- consolidate_related
- write_report

Instructions:

1. SCAN: use explore, read, glob, grep to inspect every memory file under memory_root/decisions and memory_root/learnings. Parse frontmatter (id, title, confidence, tags, created, updated) and body content.

2. ANALYZE DUPLICATES: identify memories that cover the same topic or substantially overlap. Group them by similarity.

3. MERGE: for overlapping memories about the same topic -- keep the most comprehensive version as primary, merge unique details from the secondary into the primary using edit, update the primary's "updated" timestamp, then archive the secondary under memory_root/archived/{folder}/ (folder is "decisions" or "learnings") using write, and edit the original to mark it archived.

4. ARCHIVE LOW-VALUE: archive memories that are very low confidence (< 0.3), trivial, or superseded by a more complete memory covering the same ground. Use write to copy to archived/, then edit the original to mark it archived.

5. DECAY CHECK: apply time-based decay using the access statistics below.
%s

6. CONSOLIDATE: when three or more small related memories cover the same broader topic, consider combining them into one comprehensive memory written via the write tool, and archive the originals.

7. REPORT: write a JSON report to the maintain_actions artifact with keys:
   - run_id: the run folder name
   - actions: list of {action, source_path, target_path, reason}
   - counts: {merged, archived, consolidated, decayed, unchanged}
   - all file paths must be absolute.

%s

Rules:
- You are the only writer. Explore subagents are read-only.
- Do not touch memory_root/summaries -- summaries are managed by the sync pipeline only.
- Do not delete files; always archive (soft-delete via write-then-mark-archived).
- Be conservative: when unsure whether to merge or archive, leave it unchanged.
- Quality over quantity: fewer good memories beat many noisy ones.

Return one short plain-text completion line.`,
		in.MemoryRoot, in.RunFolder, FormatArtifactPaths(in.ArtifactPaths, maintainArtifactOrder),
		FormatAccessSection(in.AccessStats, in.Policy), memorySchemaRules)

	return system, user
}
