package runtimeagent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lerim-dev/lerim/internal/errs"
)

// MemoryAction is one entry in memory_actions.json's actions array (sync
// mode) or maintain_actions.json's actions array (maintain mode).
type MemoryAction struct {
	Kind       string `json:"kind"` // "add" | "update" | "no_op" | "merge" | "archive" | "consolidate"
	TargetPath string `json:"target_path"`
	SourcePath string `json:"source_path,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// SyncResultContract is the required shape of memory_actions.json written
// by the lead agent after a sync-mode invocation (§3 "Workspace artifact
// set", §4.5 step 6).
type SyncResultContract struct {
	Counts struct {
		Add    int `json:"add"`
		Update int `json:"update"`
		NoOp   int `json:"no_op"`
	} `json:"counts"`
	Actions            []MemoryAction `json:"actions"`
	WrittenMemoryPaths []string       `json:"written_memory_paths"`
	TracePath          string         `json:"trace_path"`
}

// MaintainResultContract is the required shape of maintain_actions.json
// (§3, §4.6).
type MaintainResultContract struct {
	Counts struct {
		Merged       int `json:"merged"`
		Archived     int `json:"archived"`
		Consolidated int `json:"consolidated"`
		Decayed      int `json:"decayed"`
		Unchanged    int `json:"unchanged"`
	} `json:"counts"`
	Actions []MemoryAction `json:"actions"`
}

// ValidateSync parses and validates memory_actions.json at path: every
// written_memory_paths entry and every action's source/target path must be
// inside memoryRoot or runFolder, and counts.add+update+no_op must equal
// candidateCount (§8 "counts.add + counts.update + counts.no_op =
// len(candidates) after dedup").
func ValidateSync(path, memoryRoot, runFolder string, candidateCount int) (*SyncResultContract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ArtifactMissing{Kind: "memory_actions.json", Path: path}
	}

	var contract SyncResultContract
	if err := json.Unmarshal(data, &contract); err != nil {
		return nil, &errs.ArtifactInvalid{Kind: "memory_actions.json", Reason: err.Error()}
	}

	for _, p := range contract.WrittenMemoryPaths {
		if err := requireInside(p, memoryRoot, runFolder); err != nil {
			return nil, err
		}
	}
	for _, a := range contract.Actions {
		if a.TargetPath != "" {
			if err := requireInside(a.TargetPath, memoryRoot, runFolder); err != nil {
				return nil, err
			}
		}
		if a.SourcePath != "" {
			if err := requireInside(a.SourcePath, memoryRoot, runFolder); err != nil {
				return nil, err
			}
		}
	}

	sum := contract.Counts.Add + contract.Counts.Update + contract.Counts.NoOp
	if sum != candidateCount {
		return nil, &errs.ArtifactInvalid{
			Kind:   "memory_actions.json",
			Reason: fmt.Sprintf("counts sum to %d, expected %d candidates", sum, candidateCount),
		}
	}

	return &contract, nil
}

// ValidateMaintain parses and validates maintain_actions.json at path:
// every referenced source_path/target_path must be inside memoryRoot or
// runFolder (§4.6).
func ValidateMaintain(path, memoryRoot, runFolder string) (*MaintainResultContract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ArtifactMissing{Kind: "maintain_actions.json", Path: path}
	}

	var contract MaintainResultContract
	if err := json.Unmarshal(data, &contract); err != nil {
		return nil, &errs.ArtifactInvalid{Kind: "maintain_actions.json", Reason: err.Error()}
	}

	for _, a := range contract.Actions {
		if a.TargetPath != "" {
			if err := requireInside(a.TargetPath, memoryRoot, runFolder); err != nil {
				return nil, err
			}
		}
		if a.SourcePath != "" {
			if err := requireInside(a.SourcePath, memoryRoot, runFolder); err != nil {
				return nil, err
			}
		}
	}

	return &contract, nil
}

func requireInside(path, memoryRoot, runFolder string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &errs.ArtifactInvalid{Kind: "path", Reason: err.Error()}
	}
	abs = filepath.Clean(abs)
	for _, root := range []string{memoryRoot, runFolder} {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rootAbs = filepath.Clean(rootAbs)
		if abs == rootAbs || strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
			return nil
		}
	}
	return &errs.ArtifactInvalid{Kind: "path", Reason: fmt.Sprintf("%s is outside memory root or run folder", path)}
}
