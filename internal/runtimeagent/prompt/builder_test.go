package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMemoryEvidenceEmpty(t *testing.T) {
	assert.Equal(t, "(no relevant memories)", FormatMemoryEvidence(nil))
}

func TestFormatMemoryEvidenceTruncatesBody(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "word "
	}
	out := FormatMemoryEvidence([]MemoryHit{{ID: "mem-1", Title: "Deploy tips", Confidence: 0.9, Body: long}})
	assert.Contains(t, out, "mem-1")
	assert.Contains(t, out, "conf=0.90")
	assert.Contains(t, out, "Deploy tips")
}

func TestFormatMemoryGuidanceEmptyRoot(t *testing.T) {
	assert.Equal(t, "", FormatMemoryGuidance(""))
}

func TestFormatMemoryGuidanceIncludesRoot(t *testing.T) {
	out := FormatMemoryGuidance("/tmp/memory")
	assert.Contains(t, out, "/tmp/memory")
	assert.Contains(t, out, "two-phase retrieval")
}

func TestFormatAccessSectionEmptyStats(t *testing.T) {
	out := FormatAccessSection(nil, DecayPolicyParams{})
	assert.Contains(t, out, "No access data available")
}

func TestFormatAccessSectionWithStats(t *testing.T) {
	stats := []AccessStat{
		{MemoryID: "20260221-deploy-tips", LastAccessed: "2026-02-20T10:00:00Z", AccessCount: 5},
		{MemoryID: "20260101-old-thing", LastAccessed: "2025-08-01T10:00:00Z", AccessCount: 1},
	}
	policy := DecayPolicyParams{DecayDays: 180, ArchiveThreshold: 0.2, MinConfidenceFloor: 0.1, RecentAccessGraceDays: 30}
	out := FormatAccessSection(stats, policy)
	assert.Contains(t, out, "20260221-deploy-tips")
	assert.Contains(t, out, "20260101-old-thing")
	assert.Contains(t, out, "DECAY POLICY")
	assert.Contains(t, out, "effective_confidence")
}

func TestBuildChatPromptIncludesQuestionAndEvidence(t *testing.T) {
	system, user := BuildChatPrompt(
		"how to deploy",
		[]MemoryHit{{ID: "mem-1", Confidence: 0.9, Title: "Deploy tips", Body: "Use CI."}},
		[]string{"doc-1: CI Setup"},
		"/tmp/memory",
	)
	assert.Contains(t, system, "Lerim lead runtime agent")
	assert.Contains(t, system, "/tmp/memory")
	assert.Contains(t, user, "how to deploy")
	assert.Contains(t, user, "mem-1")
	assert.Contains(t, user, "doc-1")
}

func TestBuildChatPromptNoContextDocs(t *testing.T) {
	_, user := BuildChatPrompt("q", nil, nil, "")
	assert.Contains(t, user, "(no context docs loaded)")
}

func TestBuildSyncPromptIncludesArtifactPaths(t *testing.T) {
	in := SyncInputs{
		TracePath:  "/tmp/trace.jsonl",
		MemoryRoot: "/tmp/memory",
		RunFolder:  "/tmp/workspace/sync-1",
		ArtifactPaths: map[string]string{
			"extract":         "/tmp/workspace/sync-1/extract.json",
			"summary":         "/tmp/workspace/sync-1/summary.json",
			"memory_actions":  "/tmp/workspace/sync-1/memory_actions.json",
			"agent_log":       "/tmp/workspace/sync-1/agent.log",
			"subagents_log":   "/tmp/workspace/sync-1/subagents.log",
			"session_log":     "/tmp/workspace/sync-1/session.log",
		},
	}
	system, user := BuildSyncPrompt(in)
	assert.Contains(t, system, "Lerim lead runtime agent")
	assert.Contains(t, user, "/tmp/trace.jsonl")
	assert.Contains(t, user, "extract.json")
	assert.Contains(t, user, "PARALLEL")
	assert.Contains(t, user, "Do not write summary files yourself")
	assert.Contains(t, user, "counts keys must be exactly: add, update, no_op")
}

func TestBuildMaintainPromptIncludesChecklistAndDecay(t *testing.T) {
	in := MaintainInputs{
		MemoryRoot: "/tmp/memory",
		RunFolder:  "/tmp/workspace/maintain-1",
		ArtifactPaths: map[string]string{
			"maintain_actions": "/tmp/workspace/maintain-1/maintain_actions.json",
			"agent_log":        "/tmp/workspace/maintain-1/agent.log",
			"subagents_log":    "/tmp/workspace/maintain-1/subagents.log",
		},
		AccessStats: nil,
		Policy:      DecayPolicyParams{DecayDays: 180, ArchiveThreshold: 0.2, MinConfidenceFloor: 0.1, RecentAccessGraceDays: 30},
	}
	_, user := BuildMaintainPrompt(in)
	assert.Contains(t, user, "scan_memories")
	assert.Contains(t, user, "analyze_duplicates")
	assert.Contains(t, user, "merge_similar")
	assert.Contains(t, user, "archive_low_value")
	assert.Contains(t, user, "decay_check")
	assert.Contains(t, user, "consolidate_related")
	assert.Contains(t, user, "maintain_actions")
	assert.Contains(t, user, "Do not touch memory_root/summaries")
	assert.Contains(t, user, "No access data available")
}
