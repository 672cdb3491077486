package runtimeagent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lerim-dev/lerim/internal/access"
	"github.com/lerim-dev/lerim/internal/memory"
)

// readArgs is the JSON argument shape for the read tool.
type readArgs struct {
	Path  string `json:"path"`
	Limit int    `json:"limit,omitempty"`
}

// ReadHandler reads a file within the allowed read roots. If tracker and
// memoryRoot are non-nil/non-empty, qualifying reads are recorded in the
// access tracker (§4.7).
func ReadHandler(tracker *access.Tracker, memoryRoot string) ToolHandler {
	return func(ctx context.Context, call ToolCall, roots Roots) (*ToolResult, error) {
		var args readArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errorResult(call, fmt.Sprintf("read: bad arguments: %v", err)), nil
		}

		abs, err := roots.CheckRead(args.Path)
		if err != nil {
			return errorResult(call, err.Error()), nil
		}

		data, err := os.ReadFile(abs)
		if err != nil {
			return errorResult(call, fmt.Sprintf("read: %v", err)), nil
		}

		content := string(data)
		if args.Limit > 0 {
			lines := strings.SplitN(content, "\n", args.Limit+1)
			if len(lines) > args.Limit {
				lines = lines[:args.Limit]
			}
			content = strings.Join(lines, "\n")
		}

		if tracker != nil && memoryRoot != "" {
			if id, ok := access.IsTrackableMemoryPath(memoryRoot, abs); ok {
				_ = tracker.RecordRead(id, memoryRoot, args.Limit)
			}
		}

		return &ToolResult{CallID: call.ID, Name: call.Name, Content: content}, nil
	}
}

// globArgs is the JSON argument shape for the glob tool.
type globArgs struct {
	Pattern string `json:"pattern"`
	Root    string `json:"root"`
}

// GlobHandler resolves a glob pattern rooted at args.Root, which must fall
// inside the allowed read roots.
func GlobHandler(ctx context.Context, call ToolCall, roots Roots) (*ToolResult, error) {
	var args globArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return errorResult(call, fmt.Sprintf("glob: bad arguments: %v", err)), nil
	}

	root, err := roots.CheckRead(args.Root)
	if err != nil {
		return errorResult(call, err.Error()), nil
	}

	matches, err := filepath.Glob(filepath.Join(root, args.Pattern))
	if err != nil {
		return errorResult(call, fmt.Sprintf("glob: %v", err)), nil
	}
	return &ToolResult{CallID: call.ID, Name: call.Name, Content: strings.Join(matches, "\n")}, nil
}

// grepArgs is the JSON argument shape for the grep tool.
type grepArgs struct {
	Pattern string `json:"pattern"`
	Root    string `json:"root"`
}

// GrepHandler does a plain substring search over files under args.Root,
// which must fall inside the allowed read roots. It is intentionally
// simple (no regex engine dependency) — the runtime agent's own reasoning
// does the heavy lifting; this tool just narrows candidates.
func GrepHandler(ctx context.Context, call ToolCall, roots Roots) (*ToolResult, error) {
	var args grepArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return errorResult(call, fmt.Sprintf("grep: bad arguments: %v", err)), nil
	}

	root, err := roots.CheckRead(args.Root)
	if err != nil {
		return errorResult(call, err.Error()), nil
	}

	var hits []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(line, args.Pattern) {
				hits = append(hits, fmt.Sprintf("%s:%d:%s", path, i+1, line))
			}
		}
		return nil
	})
	if err != nil {
		return errorResult(call, fmt.Sprintf("grep: %v", err)), nil
	}
	return &ToolResult{CallID: call.ID, Name: call.Name, Content: strings.Join(hits, "\n")}, nil
}

// writeArgs is the JSON argument shape for the write tool.
type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// memoryWriteKind classifies an absolute write target against memoryRoot,
// reporting whether it falls under the decisions/ or learnings/ subtree
// (and so is subject to §4.8 write normalization), or is rejected outright
// because it targets memory/summaries/ (reserved for the summarize
// pipeline). A target outside memoryRoot entirely (e.g. a scratch file
// under the run folder) is neither — it passes through as a plain write.
func memoryWriteKind(memoryRoot, abs string) (kind memory.Kind, isMemoryFile bool, rejectReason string) {
	if memoryRoot == "" {
		return "", false, ""
	}
	rel, err := filepath.Rel(memoryRoot, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false, ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) == 0 {
		return "", false, ""
	}
	switch parts[0] {
	case "summaries":
		return "", false, "write: memory/summaries/ is reserved for the summarize pipeline"
	case "decisions":
		return memory.KindDecision, true, ""
	case "learnings":
		return memory.KindLearning, true, ""
	default:
		return "", false, ""
	}
}

// normalizeMemoryWrite parses content as a memory primitive and applies
// §4.8's write normalization: title is required; created/source are
// defaulted when absent; updated always reflects this write; the filename
// is re-derived from the (possibly agent-supplied) title rather than
// trusted from args.Path, so the write tool can never produce a file whose
// name disagrees with its own frontmatter (§8 invariant).
func normalizeMemoryWrite(kind memory.Kind, dir, content string, now time.Time) (*memory.Primitive, error) {
	fm, body, err := memory.ParseBytes([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	if fm.Title == "" {
		return nil, fmt.Errorf("write: frontmatter title is required")
	}
	if fm.Created == "" {
		fm.Created = now.UTC().Format(time.RFC3339)
	}
	if fm.Source == "" {
		fm.Source = "agent"
	}
	// updated always reflects the current write, regardless of what (if
	// anything) the agent supplied.
	fm.Updated = now.UTC().Format(time.RFC3339)

	filename := memory.Filename(now, fm.Title)
	fm.ID = memory.ID(filename)

	return &memory.Primitive{
		Kind:        kind,
		Path:        filepath.Join(dir, filename),
		Frontmatter: fm,
		Body:        body,
	}, nil
}

// WriteHandler writes a file within the allowed write roots. Writes that
// land under memory/decisions/ or memory/learnings/ go through §4.8's
// normalization (filename re-derived from title, created/updated/source
// defaulted); memory/summaries/ is never writable by this tool; every
// other write root (e.g. scratch files under the run folder) is written
// verbatim, atomically (temp file + rename). Qualifying writes are
// recorded in the access tracker (§4.7: "memory-file writes always
// count").
func WriteHandler(tracker *access.Tracker, memoryRoot string, now time.Time) ToolHandler {
	return func(ctx context.Context, call ToolCall, roots Roots) (*ToolResult, error) {
		var args writeArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errorResult(call, fmt.Sprintf("write: bad arguments: %v", err)), nil
		}

		abs, err := roots.CheckWrite(args.Path)
		if err != nil {
			return errorResult(call, err.Error()), nil
		}

		kind, isMemoryFile, rejectReason := memoryWriteKind(memoryRoot, abs)
		if rejectReason != "" {
			return errorResult(call, rejectReason), nil
		}

		finalPath := abs
		if isMemoryFile {
			p, err := normalizeMemoryWrite(kind, filepath.Dir(abs), args.Content, now)
			if err != nil {
				return errorResult(call, err.Error()), nil
			}
			if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
				return errorResult(call, fmt.Sprintf("write: mkdir: %v", err)), nil
			}
			if err := memory.Write(p); err != nil {
				return errorResult(call, fmt.Sprintf("write: %v", err)), nil
			}
			finalPath = p.Path
		} else {
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				return errorResult(call, fmt.Sprintf("write: mkdir: %v", err)), nil
			}
			tmp := abs + ".tmp"
			if err := os.WriteFile(tmp, []byte(args.Content), 0o644); err != nil {
				return errorResult(call, fmt.Sprintf("write: %v", err)), nil
			}
			if err := os.Rename(tmp, abs); err != nil {
				return errorResult(call, fmt.Sprintf("write: rename: %v", err)), nil
			}
		}

		if tracker != nil && memoryRoot != "" {
			if id, ok := access.IsTrackableMemoryPath(memoryRoot, finalPath); ok {
				_ = tracker.RecordWrite(id, memoryRoot)
			}
		}

		return &ToolResult{CallID: call.ID, Name: call.Name, Content: "wrote " + finalPath}, nil
	}
}

// editArgs is the JSON argument shape for the edit tool: a single
// exact-match string replacement, mirroring the host CLI's own edit tool
// contract.
type editArgs struct {
	Path    string `json:"path"`
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
}

// EditHandler performs an exact-match string replacement within the
// allowed write roots (maintain mode only — §4.8). Summaries are
// read-only even in maintain mode: memory/summaries/ is never a valid
// edit target.
func EditHandler(tracker *access.Tracker, memoryRoot string, now time.Time) ToolHandler {
	return func(ctx context.Context, call ToolCall, roots Roots) (*ToolResult, error) {
		var args editArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errorResult(call, fmt.Sprintf("edit: bad arguments: %v", err)), nil
		}

		abs, err := roots.CheckWrite(args.Path)
		if err != nil {
			return errorResult(call, err.Error()), nil
		}

		if _, _, rejectReason := memoryWriteKind(memoryRoot, abs); rejectReason != "" {
			return errorResult(call, strings.Replace(rejectReason, "write:", "edit:", 1)), nil
		}

		data, err := os.ReadFile(abs)
		if err != nil {
			return errorResult(call, fmt.Sprintf("edit: %v", err)), nil
		}
		original := string(data)
		if !strings.Contains(original, args.OldText) {
			return errorResult(call, "edit: old_text not found"), nil
		}
		updated := strings.Replace(original, args.OldText, args.NewText, 1)

		tmp := abs + ".tmp"
		if err := os.WriteFile(tmp, []byte(updated), 0o644); err != nil {
			return errorResult(call, fmt.Sprintf("edit: %v", err)), nil
		}
		if err := os.Rename(tmp, abs); err != nil {
			return errorResult(call, fmt.Sprintf("edit: rename: %v", err)), nil
		}

		if tracker != nil && memoryRoot != "" {
			if id, ok := access.IsTrackableMemoryPath(memoryRoot, abs); ok {
				_ = tracker.RecordWrite(id, memoryRoot)
			}
		}

		return &ToolResult{CallID: call.ID, Name: call.Name, Content: "edited " + abs}, nil
	}
}

func errorResult(call ToolCall, msg string) *ToolResult {
	return &ToolResult{CallID: call.ID, Name: call.Name, Content: msg, IsError: true}
}
