package catalog

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/lerim-dev/lerim/internal/adapters"
)

// DiscoverNew runs discovery across the selected (or all registered)
// adapters, upserts every new-or-changed session into session_docs, and
// returns the records the sync pipeline should enqueue jobs for (§4.1
// "discover_new").
func (c *Catalog) DiscoverNew(registry adapters.Registry, agentNames []string, start, end *time.Time) ([]adapters.SessionRecord, error) {
	names := agentNames
	if len(names) == 0 {
		names = registry.Names()
	}

	knownHashes, err := c.knownRunHashes()
	if err != nil {
		return nil, fmt.Errorf("discover_new: known hashes: %w", err)
	}

	var discovered []adapters.SessionRecord
	for _, name := range names {
		adapter, ok := registry.Get(name)
		if !ok {
			continue
		}

		records, err := adapter.IterSessions("", start, end, knownHashes)
		if err != nil {
			// One adapter failing must not stop discovery for the rest
			// (§7 "AdapterError ... wraps, does not stop other adapters").
			slog.Warn("adapter enumeration failed", "adapter", name, "error", err)
			continue
		}

		for _, rec := range records {
			rec.AgentType = adapter.Name()
			doc := SessionDoc{
				RunID:         rec.RunID,
				AgentType:     rec.AgentType,
				RepoPath:      rec.SessionPath,
				RepoName:      repoNameOf(rec),
				StartTime:     rec.StartTime,
				Status:        rec.Status,
				DurationMS:    rec.DurationMS,
				MessageCount:  rec.MessageCount,
				ToolCallCount: rec.ToolCallCount,
				ErrorCount:    rec.ErrorCount,
				TotalTokens:   rec.TotalTokens,
				SessionPath:   rec.SessionPath,
				ContentHash:   rec.ContentHash,
			}
			if err := c.IndexSession(doc); err != nil {
				continue
			}
			discovered = append(discovered, rec)
		}
	}

	return discovered, nil
}

func repoNameOf(rec adapters.SessionRecord) string {
	if rec.RepoName != "" {
		return rec.RepoName
	}
	if rec.SessionPath == "" {
		return ""
	}
	return filepath.Base(filepath.Dir(rec.SessionPath))
}

func (c *Catalog) knownRunHashes() (map[string]string, error) {
	rows, err := c.db.Query(`SELECT run_id, content_hash FROM session_docs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var runID, hash string
		if err := rows.Scan(&runID, &hash); err != nil {
			return nil, err
		}
		hashes[runID] = hash
	}
	return hashes, rows.Err()
}
