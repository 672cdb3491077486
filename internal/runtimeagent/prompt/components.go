// Package prompt assembles the system and user messages handed to the lead
// runtime agent for each mode (chat, sync, maintain), mirroring the
// teacher's split of shared formatting components from mode-specific
// builders.
package prompt

import (
	"fmt"
	"strings"
)

// MemoryHit is one retrieved memory evidence row, formatted into the chat
// prompt's evidence block.
type MemoryHit struct {
	ID         string
	Title      string
	Confidence float64
	Body       string
}

// FormatMemoryEvidence renders retrieved memory hits as a citation-ready
// evidence block, truncating each body to a short snippet so the lead agent
// sees enough to decide relevance without flooding its context.
func FormatMemoryEvidence(hits []MemoryHit) string {
	if len(hits) == 0 {
		return "(no relevant memories)"
	}
	var sb strings.Builder
	for i, h := range hits {
		snippet := strings.Join(strings.Fields(h.Body), " ")
		if len(snippet) > 260 {
			snippet = snippet[:260]
		}
		sb.WriteString(fmt.Sprintf("- %s conf=%.2f: %s :: %s", h.ID, h.Confidence, h.Title, snippet))
		if i < len(hits)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// FormatMemoryGuidance describes the memory store's layout for the chat
// system prompt, pointing the lead agent at the explore subagent for
// two-phase retrieval.
func FormatMemoryGuidance(memoryRoot string) string {
	if memoryRoot == "" {
		return ""
	}
	return fmt.Sprintf(`
Memory location: %s
Structure: decisions/*.md and learnings/*.md -- YAML frontmatter + markdown body.
Frontmatter fields: id, title, created, updated, confidence, tags, kind (learnings only).
Use the explore tool for two-phase retrieval: scan frontmatter first, then read in full only the memories that look relevant.
`, memoryRoot)
}

// AccessStat is one memory's access-tracker row, formatted into the
// maintain prompt's decay section.
type AccessStat struct {
	MemoryID     string
	LastAccessed string
	AccessCount  int
}

// DecayPolicyParams carries the decay thresholds surfaced to the maintain
// agent so it can reason about archive candidates alongside the access
// tracker's own pure EffectiveConfidence computation.
type DecayPolicyParams struct {
	DecayDays             int
	ArchiveThreshold      float64
	MinConfidenceFloor    float64
	RecentAccessGraceDays int
}

// FormatAccessSection renders the access-statistics and decay-policy block
// for the maintain prompt. With no stats it tells the agent to skip
// decay-based archiving rather than inventing numbers.
func FormatAccessSection(stats []AccessStat, policy DecayPolicyParams) string {
	if len(stats) == 0 {
		return `
ACCESS DECAY: No access data available yet. Skip decay-based archiving for this run.
Memories will start being tracked once they are read or written through the runtime agent's tools.`
	}

	var lines strings.Builder
	for i, s := range stats {
		lines.WriteString(fmt.Sprintf("- %s: last_accessed=%s, access_count=%d", s.MemoryID, s.LastAccessed, s.AccessCount))
		if i < len(stats)-1 {
			lines.WriteString("\n")
		}
	}

	return fmt.Sprintf(`
ACCESS STATISTICS (from chat usage tracking):
%s

DECAY POLICY:
- Calculate effective_confidence = confidence * decay_factor
- decay_factor = max(%.2f, 1.0 - (days_since_last_accessed / %d))
- Memories with no access record: use days since "created" instead.
- Archive candidates: effective_confidence < %.2f
- Grace period: memories accessed within the last %d days must NOT be archived regardless of confidence.
- Apply decay check after the standard quality-based archiving step.`,
		lines.String(), policy.MinConfidenceFloor, policy.DecayDays, policy.ArchiveThreshold, policy.RecentAccessGraceDays)
}

// FormatArtifactPaths renders an ordered artifact-path listing for
// inclusion in a prompt's Inputs section.
func FormatArtifactPaths(paths map[string]string, order []string) string {
	var sb strings.Builder
	for i, key := range order {
		path, ok := paths[key]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: %s", key, path))
		if i < len(order)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
