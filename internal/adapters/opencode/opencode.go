// Package opencode adapts opencode's SQLite-backed session store to
// Lerim's Adapter interface. Grounded on
// original_source/src/lerim/adapters/opencode.py: opencode keeps a single
// "db.sqlite" under ~/.local/share/opencode/, with session and message rows
// stored as JSON-text columns (the "data" column on the session/message
// tables). Sessions are exported to a normalized JSONL cache file under
// ~/.lerim/cache/opencode and hashed there, the same incremental strategy
// as the cursor adapter (§4.2, §9).
package opencode

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lerim-dev/lerim/internal/adapters"
)

// Adapter implements adapters.Adapter for opencode's SQLite session store.
type Adapter struct{}

// New constructs an opencode adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "opencode" }

func (a *Adapter) DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "opencode")
}

func cacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lerim", "cache", "opencode")
}

func resolveDBPath(storageDir string) string {
	return filepath.Join(storageDir, "db.sqlite")
}

// jsonCol decodes a JSON-text column into a generic map, tolerating empty
// or malformed values the same way opencode.py's _json_col does.
func jsonCol(raw sql.NullString) map[string]any {
	if !raw.Valid || raw.String == "" {
		return map[string]any{}
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw.String), &decoded); err != nil {
		return map[string]any{}
	}
	return decoded
}

func (a *Adapter) CountSessions(path string) (int, error) {
	base := path
	if base == "" {
		base = a.DefaultPath()
	}
	dbPath := resolveDBPath(base)
	if _, err := os.Stat(dbPath); err != nil {
		return 0, nil
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM session`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

type sessionRow struct {
	id   string
	data map[string]any
}

func readSessionRows(dbPath string) ([]sessionRow, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, data FROM session`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sessionRow
	for rows.Next() {
		var id string
		var data sql.NullString
		if err := rows.Scan(&id, &data); err != nil {
			continue
		}
		out = append(out, sessionRow{id: id, data: jsonCol(data)})
	}
	return out, rows.Err()
}

func readMessageRows(dbPath, sessionID string) ([]map[string]any, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, data FROM message WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var id string
		var data sql.NullString
		if err := rows.Scan(&id, &data); err != nil {
			continue
		}
		decoded := jsonCol(data)
		decoded["_id"] = id
		out = append(out, decoded)
	}
	return out, rows.Err()
}

func (a *Adapter) FindSessionPath(sessionID string, tracesDir string) (string, error) {
	base := tracesDir
	if base == "" {
		base = a.DefaultPath()
	}
	dbPath := resolveDBPath(base)
	if _, err := os.Stat(dbPath); err != nil {
		return "", nil
	}
	rows, err := readSessionRows(dbPath)
	if err != nil {
		return "", err
	}
	for _, r := range rows {
		if r.id == sessionID {
			return dbPath, nil
		}
	}
	return "", nil
}

func (a *Adapter) IterSessions(tracesDir string, start, end *time.Time, knownRunHashes map[string]string) ([]adapters.SessionRecord, error) {
	base := tracesDir
	if base == "" {
		base = a.DefaultPath()
	}
	dbPath := resolveDBPath(base)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, nil
	}

	sessions, err := readSessionRows(dbPath)
	if err != nil {
		return nil, err
	}

	cache := cacheDir()
	if cache != "" {
		if err := os.MkdirAll(cache, 0o755); err != nil {
			return nil, err
		}
	}

	var records []adapters.SessionRecord
	for _, s := range sessions {
		messages, err := readMessageRows(dbPath, s.id)
		if err != nil {
			continue
		}
		exportRows := append([]map[string]any{s.data}, messages...)

		hash, err := adapters.ComputeCanonicalJSONLHash(exportRows)
		if err != nil {
			continue
		}
		changed := knownRunHashes[s.id] != hash
		if !changed && knownRunHashes[s.id] != "" {
			continue
		}

		if cache != "" {
			_ = exportSessionJSONL(filepath.Join(cache, s.id+".jsonl"), exportRows)
		}

		rec := summarizeMessages(s.id, dbPath, s.data, messages)
		rec.ContentHash = hash
		rec.Changed = changed
		if !adapters.InWindow(rec.StartTime, start, end) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func exportSessionJSONL(path string, rows []map[string]any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return os.Rename(tmp, path)
}

func summarizeMessages(sessionID, dbPath string, sessionData map[string]any, messages []map[string]any) adapters.SessionRecord {
	rec := adapters.SessionRecord{
		RunID:       sessionID,
		AgentType:   "opencode",
		SessionPath: dbPath,
		Status:      "completed",
	}
	if dir, ok := sessionData["directory"].(string); ok {
		rec.RepoName = filepath.Base(dir)
	}

	var firstTS, lastTS *time.Time
	for _, msg := range messages {
		if ts, ok := adapters.ParseTimestamp(msg["time"]); ok && ts != nil {
			if firstTS == nil {
				firstTS = ts
			}
			lastTS = ts
		}
		role, _ := msg["role"].(string)
		if role == "user" || role == "assistant" {
			rec.MessageCount++
		}
		if parts, ok := msg["parts"].([]any); ok {
			for _, p := range parts {
				if partMap, ok := p.(map[string]any); ok && partMap["type"] == "tool" {
					rec.ToolCallCount++
				}
			}
		}
		if tokens, ok := msg["tokens"].(map[string]any); ok {
			if v, ok := tokens["input"].(float64); ok {
				rec.TotalTokens += int(v)
			}
			if v, ok := tokens["output"].(float64); ok {
				rec.TotalTokens += int(v)
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
	messages, err := readMessageRows(path, sessionID)
	if err != nil {
		return nil, err
	}

	session := &adapters.ViewerSession{SessionID: sessionID, Meta: map[string]any{}}
	for _, msg := range messages {
		role, _ := msg["role"].(string)
		ts := ""
		if t, ok := adapters.ParseTimestamp(msg["time"]); ok && t != nil {
			ts = adapters.FormatEpochOrISO(t)
		}

		var text string
		if parts, ok := msg["parts"].([]any); ok {
			for _, p := range parts {
				partMap, ok := p.(map[string]any)
				if !ok {
					continue
				}
				switch partMap["type"] {
				case "text":
					if t, ok := partMap["text"].(string); ok {
						text += t
					}
				case "tool":
					toolMsg := adapters.ViewerMessage{
						Role:      "tool",
						Timestamp: ts,
						ToolInput: partMap["input"],
						ToolOutput: partMap["output"],
					}
					if name, ok := partMap["tool"].(string); ok {
						toolMsg.ToolName = name
					}
					session.Messages = append(session.Messages, toolMsg)
				}
			}
		}
		if text != "" {
			session.Messages = append(session.Messages, adapters.ViewerMessage{Role: role, Content: text, Timestamp: ts})
		}
	}
	return session, nil
}
