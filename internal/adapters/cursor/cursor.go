// Package cursor adapts Cursor's SQLite-backed chat history to Lerim's
// Adapter interface. Grounded on
// original_source/src/lerim/adapters/cursor.py: Cursor keeps per-workspace
// "state.vscdb" SQLite databases under an OS-dependent globalStorage path,
// with conversation data packed into a cursorDiskKV/ItemTable key-value
// blob column rather than relational rows. Because the source isn't a
// stable file to content-hash directly, each session is exported to a
// normalized JSONL cache file under ~/.lerim/cache/cursor and hashed there
// (§4.2, §9 "hash a canonicalized JSONL").
package cursor

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lerim-dev/lerim/internal/adapters"
)

// Adapter implements adapters.Adapter for Cursor's SQLite-backed history.
type Adapter struct{}

// New constructs a Cursor adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "cursor" }

// DefaultPath resolves Cursor's globalStorage directory, which differs by
// OS the same way cursor.py's default_path does.
func (a *Adapter) DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Cursor", "User", "globalStorage")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Cursor", "User", "globalStorage")
	default:
		return filepath.Join(home, ".config", "Cursor", "User", "globalStorage")
	}
}

func cacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lerim", "cache", "cursor")
}

// resolveDBPaths finds every state.vscdb file under globalStorage.
func resolveDBPaths(globalStorage string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(globalStorage, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if d.Name() == "state.vscdb" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return paths, nil
}

func (a *Adapter) CountSessions(path string) (int, error) {
	base := path
	if base == "" {
		base = a.DefaultPath()
	}
	dbs, err := resolveDBPaths(base)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, dbPath := range dbs {
		rows, err := readComposerIDs(dbPath)
		if err != nil {
			continue
		}
		count += len(rows)
	}
	return count, nil
}

// readComposerIDs pulls the set of composer (conversation) ids stored in a
// single state.vscdb's ItemTable under the "composer.composerData" key.
func readComposerIDs(dbPath string) ([]string, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var raw string
	row := db.QueryRow(`SELECT value FROM ItemTable WHERE key = 'composer.composerData'`)
	if err := row.Scan(&raw); err != nil {
		return nil, err
	}

	var payload struct {
		AllComposers []struct {
			ComposerID string `json:"composerId"`
		} `json:"allComposers"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(payload.AllComposers))
	for _, c := range payload.AllComposers {
		ids = append(ids, c.ComposerID)
	}
	return ids, nil
}

// readSessionDB loads one composer conversation's raw bubble messages from
// cursorDiskKV, keyed "bubbleId:<composerId>:<bubbleId>".
func readSessionDB(dbPath, composerID string) ([]map[string]any, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT key, value FROM cursorDiskKV WHERE key LIKE ?`, "bubbleId:"+composerID+":%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []map[string]any
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			continue
		}
		decoded["_key"] = key
		entries = append(entries, decoded)
	}
	return entries, rows.Err()
}

func (a *Adapter) FindSessionPath(sessionID string, tracesDir string) (string, error) {
	base := tracesDir
	if base == "" {
		base = a.DefaultPath()
	}
	dbs, err := resolveDBPaths(base)
	if err != nil {
		return "", err
	}
	for _, dbPath := range dbs {
		ids, err := readComposerIDs(dbPath)
		if err != nil {
			continue
		}
		for _, id := range ids {
			if id == sessionID {
				return dbPath, nil
			}
		}
	}
	return "", nil
}

func (a *Adapter) IterSessions(tracesDir string, start, end *time.Time, knownRunHashes map[string]string) ([]adapters.SessionRecord, error) {
	base := tracesDir
	if base == "" {
		base = a.DefaultPath()
	}
	dbs, err := resolveDBPaths(base)
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
	for _, dbPath := range dbs {
		ids, err := readComposerIDs(dbPath)
		if err != nil {
			continue
		}
		for _, composerID := range ids {
			entries, err := readSessionDB(dbPath, composerID)
			if err != nil || len(entries) == 0 {
				continue
			}

			hash, err := adapters.ComputeCanonicalJSONLHash(entries)
			if err != nil {
				continue
			}
			changed := knownRunHashes[composerID] != hash
			if !changed && knownRunHashes[composerID] != "" {
				continue
			}

			if cache != "" {
				_ = exportSessionJSONL(filepath.Join(cache, composerID+".jsonl"), entries)
			}

			rec := summarizeBubbles(composerID, dbPath, entries)
			rec.ContentHash = hash
			rec.Changed = changed
			if !adapters.InWindow(rec.StartTime, start, end) {
				continue
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func exportSessionJSONL(path string, entries []map[string]any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return err
		}
	}
	return os.Rename(tmp, path)
}

func summarizeBubbles(composerID, dbPath string, entries []map[string]any) adapters.SessionRecord {
	rec := adapters.SessionRecord{
		RunID:       composerID,
		AgentType:   "cursor",
		SessionPath: dbPath,
		Status:      "completed",
	}
	var firstTS, lastTS *time.Time
	for _, entry := range entries {
		if ts, ok := adapters.ParseTimestamp(entry["createdAt"]); ok && ts != nil {
			if firstTS == nil {
				firstTS = ts
			}
			lastTS = ts
		}
		role, _ := entry["type"].(float64) // cursor stores 1=user, 2=assistant
		if role == 1 || role == 2 {
			rec.MessageCount++
		}
		if toolCalls, ok := entry["toolFormerData"]; ok && toolCalls != nil {
			rec.ToolCallCount++
		}
	}
	rec.StartTime = firstTS
	if firstTS != nil && lastTS != nil {
		rec.DurationMS = lastTS.Sub(*firstTS).Milliseconds()
	}
	return rec
}

func (a *Adapter) ReadSession(path string, sessionID string) (*adapters.ViewerSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("cursor: ReadSession requires sessionID")
	}
	entries, err := readSessionDB(path, sessionID)
	if err != nil {
		return nil, err
	}

	session := &adapters.ViewerSession{SessionID: sessionID, Meta: map[string]any{}}
	for _, entry := range entries {
		roleNum, _ := entry["type"].(float64)
		role := "assistant"
		if roleNum == 1 {
			role = "user"
		}
		text, _ := entry["text"].(string)
		ts := ""
		if t, ok := adapters.ParseTimestamp(entry["createdAt"]); ok && t != nil {
			ts = adapters.FormatEpochOrISO(t)
		}
		msg := adapters.ViewerMessage{Role: role, Content: text, Timestamp: ts}
		if tf, ok := entry["toolFormerData"].(map[string]any); ok {
			name, _ := tf["name"].(string)
			msg.ToolName = name
			msg.ToolInput = tf["params"]
			msg.ToolOutput = tf["result"]
		}
		session.Messages = append(session.Messages, msg)
	}
	return session, nil
}
