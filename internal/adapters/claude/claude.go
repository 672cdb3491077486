// Package claude adapts Claude desktop's JSONL session traces to Lerim's
// Adapter interface. Grounded on
// original_source/src/lerim/adapters/claude.py: one JSONL file per session
// under ~/.claude/projects/, file stem is the session id, each line is a
// transcript entry with a "type" discriminator ("user", "assistant",
// "tool_use"/"tool_result" blocks embedded in user/assistant content).
package claude

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lerim-dev/lerim/internal/adapters"
)

// Adapter implements adapters.Adapter for Claude desktop traces.
type Adapter struct{}

// New constructs a Claude adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "claude" }

func (a *Adapter) DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", "projects")
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
		stem := strings.TrimSuffix(filepath.Base(path), ".jsonl")
		if stem == sessionID {
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

		runID := strings.TrimSuffix(filepath.Base(path), ".jsonl")
		hash, hashErr := adapters.ComputeFileHash(path)
		if hashErr != nil {
			return nil
		}

		changed := knownRunHashes[runID] != hash
		if !changed && knownRunHashes[runID] != "" {
			return nil // indexed-and-same: skip (§4.2)
		}

		rows, rErr := adapters.LoadJSONLDictLines(path)
		if rErr != nil {
			return nil
		}

		rec := summarizeEntries(runID, rows, info)
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

func summarizeEntries(runID string, rows []map[string]any, info os.FileInfo) adapters.SessionRecord {
	rec := adapters.SessionRecord{
		RunID:     runID,
		AgentType: "claude",
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
		case "user":
			rec.MessageCount++
		case "assistant":
			rec.MessageCount++
		case "tool_use", "tool_result":
			rec.ToolCallCount++
		}
		if errVal, ok := row["isError"].(bool); ok && errVal {
			rec.ErrorCount++
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
		resolvedID = strings.TrimSuffix(filepath.Base(path), ".jsonl")
	}

	session := &adapters.ViewerSession{SessionID: resolvedID, Meta: map[string]any{}}
	toolMessages := map[string]*adapters.ViewerMessage{}

	for _, row := range rows {
		entryType, _ := row["type"].(string)
		timestamp, _ := row["timestamp"].(string)

		if session.GitBranch == "" {
			if gb, ok := row["gitBranch"].(string); ok {
				session.GitBranch = gb
			}
		}
		if session.CWD == "" {
			if cwd, ok := row["cwd"].(string); ok {
				session.CWD = cwd
			}
		}

		switch entryType {
		case "user":
			msg := adapters.ViewerMessage{Role: "user", Timestamp: timestamp}
			if message, ok := row["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					msg.Content = content
				}
			}
			session.Messages = append(session.Messages, msg)
		case "assistant":
			msg := adapters.ViewerMessage{Role: "assistant", Timestamp: timestamp}
			if message, ok := row["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					msg.Content = content
				}
				if usage, ok := message["usage"].(map[string]any); ok {
					if v, ok := usage["input_tokens"].(float64); ok {
						session.TotalInputTokens += int(v)
					}
					if v, ok := usage["output_tokens"].(float64); ok {
						session.TotalOutputTokens += int(v)
					}
				}
			}
			session.Messages = append(session.Messages, msg)
		case "tool_use":
			toolID, _ := row["id"].(string)
			name, _ := row["name"].(string)
			msg := &adapters.ViewerMessage{Role: "tool", ToolName: name, Timestamp: timestamp, ToolInput: row["input"]}
			toolMessages[toolID] = msg
			session.Messages = append(session.Messages, *msg)
		case "tool_result":
			toolID, _ := row["tool_use_id"].(string)
			if existing, ok := toolMessages[toolID]; ok {
				existing.ToolOutput = row["content"]
			}
		}
	}

	return session, nil
}
