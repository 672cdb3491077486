package catalog

import (
	"database/sql"
	"fmt"
	"strings"
)

// IndexSession upserts one session_docs row (delete-then-insert, §4.1
// "index_session"). The FTS index stays in sync via the schema's AFTER
// triggers. Idempotent: re-indexing an unchanged session is a no-op in
// effect, just a rewrite of the same values.
func (c *Catalog) IndexSession(doc SessionDoc) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("index_session: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM session_docs WHERE run_id = ?`, doc.RunID); err != nil {
		return fmt.Errorf("index_session: delete: %w", err)
	}

	indexedAt := now()
	_, err = tx.Exec(`
		INSERT INTO session_docs (
			run_id, agent_type, repo_path, repo_name, start_time, content,
			indexed_at, status, duration_ms, message_count, tool_call_count,
			error_count, total_tokens, summaries, summary_text, turns_json,
			session_path, tags, outcome, content_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.RunID, doc.AgentType, doc.RepoPath, doc.RepoName,
		nullableTime(doc.StartTime), doc.Content, indexedAt, doc.Status,
		doc.DurationMS, doc.MessageCount, doc.ToolCallCount, doc.ErrorCount,
		doc.TotalTokens, doc.Summaries, doc.SummaryText, doc.TurnsJSON,
		doc.SessionPath, doc.Tags, doc.Outcome, doc.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("index_session: insert: %w", err)
	}

	return tx.Commit()
}

const sessionDocColumns = `
	id, run_id, agent_type, repo_path, repo_name, start_time, content,
	indexed_at, status, duration_ms, message_count, tool_call_count,
	error_count, total_tokens, summaries, summary_text, turns_json,
	session_path, tags, outcome, content_hash`

func scanSessionDoc(scanner interface {
	Scan(dest ...any) error
}) (SessionDoc, error) {
	var doc SessionDoc
	var startTime, indexedAt sql.NullString
	err := scanner.Scan(
		&doc.ID, &doc.RunID, &doc.AgentType, &doc.RepoPath, &doc.RepoName,
		&startTime, &doc.Content, &indexedAt, &doc.Status, &doc.DurationMS,
		&doc.MessageCount, &doc.ToolCallCount, &doc.ErrorCount, &doc.TotalTokens,
		&doc.Summaries, &doc.SummaryText, &doc.TurnsJSON, &doc.SessionPath,
		&doc.Tags, &doc.Outcome, &doc.ContentHash,
	)
	if err != nil {
		return doc, err
	}
	doc.StartTime = parseNullableTime(startTime)
	if t := parseNullableTime(indexedAt); t != nil {
		doc.IndexedAt = *t
	}
	return doc, nil
}

// Fetch returns the session_docs row for run_id, or nil if absent
// (§4.1 "fetch").
func (c *Catalog) Fetch(runID string) (*SessionDoc, error) {
	row := c.db.QueryRow(`SELECT `+sessionDocColumns+` FROM session_docs WHERE run_id = ?`, runID)
	doc, err := scanSessionDoc(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return &doc, nil
}

// UpdateExtractFields partially updates summary_text/tags/outcome on an
// existing session_docs row (§4.1 "update_extract_fields"). Nil arguments
// leave the corresponding column untouched; an empty string is written.
func (c *Catalog) UpdateExtractFields(runID string, summaryText, tags, outcome *string) error {
	sets := []string{}
	args := []any{}
	if summaryText != nil {
		sets = append(sets, "summary_text = ?")
		args = append(args, *summaryText)
	}
	if tags != nil {
		sets = append(sets, "tags = ?")
		args = append(args, *tags)
	}
	if outcome != nil {
		sets = append(sets, "outcome = ?")
		args = append(args, *outcome)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, runID)
	query := fmt.Sprintf(`UPDATE session_docs SET %s WHERE run_id = ?`, strings.Join(sets, ", "))
	_, err := c.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update_extract_fields: %w", err)
	}
	return nil
}

// ListWindowParams filters ListWindow.
type ListWindowParams struct {
	Limit      int
	Offset     int
	AgentTypes []string
	Since      string // RFC3339, inclusive lower bound on start_time
	Until      string // RFC3339, inclusive upper bound on start_time
}

// ListWindow returns a page of session_docs rows ordered by start_time
// desc, indexed_at desc as tiebreak, with nulls sorting as if they were the
// bound (§4.1 "list_window").
func (c *Catalog) ListWindow(p ListWindowParams) (WindowResult, error) {
	where := []string{}
	args := []any{}

	if len(p.AgentTypes) > 0 {
		placeholders := make([]string, len(p.AgentTypes))
		for i, at := range p.AgentTypes {
			placeholders[i] = "?"
			args = append(args, at)
		}
		where = append(where, fmt.Sprintf("agent_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if p.Since != "" {
		where = append(where, "(start_time IS NULL OR start_time >= ?)")
		args = append(args, p.Since)
	}
	if p.Until != "" {
		where = append(where, "(start_time IS NULL OR start_time <= ?)")
		args = append(args, p.Until)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM session_docs %s`, whereClause)
	if err := c.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return WindowResult{}, fmt.Errorf("list_window: count: %w", err)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	pageArgs := append(append([]any{}, args...), limit, p.Offset)
	rowsQuery := fmt.Sprintf(`
		SELECT %s FROM session_docs %s
		ORDER BY start_time DESC, indexed_at DESC
		LIMIT ? OFFSET ?`, sessionDocColumns, whereClause)

	rows, err := c.db.Query(rowsQuery, pageArgs...)
	if err != nil {
		return WindowResult{}, fmt.Errorf("list_window: query: %w", err)
	}
	defer rows.Close()

	var docs []SessionDoc
	for rows.Next() {
		doc, err := scanSessionDoc(rows)
		if err != nil {
			return WindowResult{}, fmt.Errorf("list_window: scan: %w", err)
		}
		docs = append(docs, doc)
	}
	return WindowResult{Rows: docs, Total: total}, rows.Err()
}

// Search runs an FTS5 match query over sessions_fts and returns the
// matching session_docs rows ordered by FTS rank.
func (c *Catalog) Search(query string, limit int) ([]SessionDoc, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := c.db.Query(`
		SELECT `+joinPrefixed("d", sessionDocColumns)+`
		FROM sessions_fts f
		JOIN session_docs d ON d.id = f.rowid
		WHERE sessions_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var docs []SessionDoc
	for rows.Next() {
		doc, err := scanSessionDoc(rows)
		if err != nil {
			return nil, fmt.Errorf("search: scan: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func joinPrefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, alias+"."+p)
	}
	return strings.Join(out, ", ")
}
