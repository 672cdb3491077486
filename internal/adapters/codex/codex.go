// Package codex adapts Codex CLI's JSONL session traces to Lerim's Adapter
// interface. Grounded on original_source/src/lerim/adapters/codex.py: one
// JSONL file per session under ~/.codex/sessions/, entries discriminated by
// a "type" field ("turn_context", "response_item", "event_msg"), turn
// responses nested under message.content blocks similar to claude's shape.
package codex

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lerim-dev/lerim/internal/adapters"
)

// Adapter implements adapters.Adapter for Codex CLI traces.
type Adapter struct{}

// New constructs a Codex adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "codex" }

func (a *Adapter) DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codex", "sessions")
}

func (a *Adapter) CountSessions(path string) (int, error) {
	return adapters.CountNonEmptyFiles(path, "*.jsonl")
}

func (a *Adapter) FindSessionPath(sessionID string, tracesDir string) (string, error) {
	base := tracesDir
	if base == "" {
		base = a.DefaultPath()
	}
	if base == "" {
		return "", nil
	}
	var found string
	_ = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || found != "" {
			return nil
		}
		if filepath.Ext(path) != ".jsonl" {
			return nil
		}
		if strings.Contains(filepath.Base(path), sessionID) {
			found = path
		}
		return nil
	})
	return found, nil
}

func (a *Adapter) IterSessions(tracesDir string, start, end *time.Time, knownRunHashes map[string]string) ([]adapters.SessionRecord, error) {
	base := tracesDir
	if base == "" {
		base = a.DefaultPath()
	}
	if base == "" {
		return nil, nil
	}

	var records []adapters.SessionRecord
	walkErr := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".jsonl" {
			return nil
		}
		info, statErr := d.Info()
		if statErr != nil || info.Size() == 0 {
			return nil
		}

		runID := sessionIDFromFilename(filepath.Base(path))
		hash, hashErr := adapters.ComputeFileHash(path)
		if hashErr != nil {
			return nil
		}

		changed := knownRunHashes[runID] != hash
		if !changed && knownRunHashes[runID] != "" {
			return nil
		}

		rows, rErr := adapters.LoadJSONLDictLines(path)
		if rErr != nil {
			return nil
		}

		rec := summarizeTurns(runID, rows)
		rec.ContentHash = hash
		rec.Changed = changed
		if !adapters.InWindow(rec.StartTime, start, end) {
			return nil
		}
		records = append(records, rec)
		return nil
	})
	return records, walkErr
}

// sessionIDFromFilename strips codex's "rollout-<timestamp>-<uuid>.jsonl"
// naming convention down to the trailing uuid segment, falling back to the
// bare stem when the name doesn't match that shape.
func sessionIDFromFilename(name string) string {
	stem := strings.TrimSuffix(name, ".jsonl")
	parts := strings.Split(stem, "-")
	if len(parts) >= 5 {
		return strings.Join(parts[len(parts)-5:], "-")
	}
	return stem
}

func summarizeTurns(runID string, rows []map[string]any) adapters.SessionRecord {
	rec := adapters.SessionRecord{
		RunID:     runID,
		AgentType: "codex",
		Status:    "completed",
	}
	var firstTS, lastTS *time.Time
	for _, row := range rows {
		entryType, _ := row["type"].(string)
		if ts, ok := adapters.ParseTimestamp(row["timestamp"]); ok && ts != nil {
			if firstTS == nil {
				firstTS = ts
			}
			lastTS = ts
		}
		switch entryType {
		case "response_item":
			rec.MessageCount++
			if payload, ok := row["payload"].(map[string]any); ok {
				if payload["type"] == "function_call" || payload["type"] == "function_call_output" {
					rec.ToolCallCount++
				}
			}
		case "event_msg":
			if payload, ok := row["payload"].(map[string]any); ok {
				if payload["type"] == "error" {
					rec.ErrorCount++
				}
			}
		}
	}
	rec.StartTime = firstTS
	if firstTS != nil && lastTS != nil {
		rec.DurationMS = lastTS.Sub(*firstTS).Milliseconds()
	}
	return rec
}

func (a *Adapter) ReadSession(path string, sessionID string) (*adapters.ViewerSession, error) {
	rows, err := adapters.LoadJSONLDictLines(path)
	if err != nil {
		return nil, err
	}

	resolvedID := sessionID
	if resolvedID == "" {
		resolvedID = sessionIDFromFilename(filepath.Base(path))
	}

	session := &adapters.ViewerSession{SessionID: resolvedID, Meta: map[string]any{}}

	for _, row := range rows {
		entryType, _ := row["type"].(string)
		timestamp, _ := row["timestamp"].(string)

		if entryType == "turn_context" {
			if payload, ok := row["payload"].(map[string]any); ok {
				if cwd, ok := payload["cwd"].(string); ok {
					session.CWD = cwd
				}
			}
			continue
		}

		if entryType != "response_item" {
			continue
		}
		payload, ok := row["payload"].(map[string]any)
		if !ok {
			continue
		}
		switch payload["type"] {
		case "message":
			role, _ := payload["role"].(string)
			var text strings.Builder
			if contentBlocks, ok := payload["content"].([]any); ok {
				for _, block := range contentBlocks {
					if blockMap, ok := block.(map[string]any); ok {
						if t, ok := blockMap["text"].(string); ok {
							text.WriteString(t)
						}
					}
				}
			}
			session.Messages = append(session.Messages, adapters.ViewerMessage{
				Role: role, Content: text.String(), Timestamp: timestamp,
			})
		case "function_call":
			name, _ := payload["name"].(string)
			session.Messages = append(session.Messages, adapters.ViewerMessage{
				Role: "tool", ToolName: name, Timestamp: timestamp, ToolInput: payload["arguments"],
			})
		case "function_call_output":
			session.Messages = append(session.Messages, adapters.ViewerMessage{
				Role: "tool", Timestamp: timestamp, ToolOutput: payload["output"],
			})
		}
	}

	return session, nil
}
