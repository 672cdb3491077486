package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

// MinStartTime returns the earliest non-null start_time across session_docs,
// used to resolve the `all` window literal (§6 window grammar: "all ...
// resolves to min(start_time) across the catalog"). Returns nil if the
// catalog has no sessions with a known start time.
func (c *Catalog) MinStartTime() (*time.Time, error) {
	var min sql.NullString
	err := c.db.QueryRow(`SELECT MIN(start_time) FROM session_docs WHERE start_time IS NOT NULL`).Scan(&min)
	if err != nil {
		return nil, fmt.Errorf("min_start_time: %w", err)
	}
	return parseNullableTime(min), nil
}
