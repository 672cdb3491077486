package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"
)

// withImmediateTx runs fn inside a BEGIN IMMEDIATE transaction on a
// dedicated connection, committing on success and rolling back on error or
// panic. EnqueueJob, ClaimJobs and Fail route through this helper instead
// of db.Begin, whose Tx takes a deferred lock. Heartbeat and Complete do
// not use it: each runs a single UPDATE in autocommit mode.
func (c *Catalog) withImmediateTx(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("begin immediate: conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin immediate: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	if err := fn(ctx, conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("begin immediate: commit: %w", err)
	}
	committed = true
	return nil
}

// EnqueueJob inserts a new session_jobs row, or — when force is true —
// resets an existing (run_id, job_type) row back to pending with attempts
// cleared (§3 "Queue job" invariants).
func (c *Catalog) EnqueueJob(runID, jobType string, force bool, maxAttempts int, trigger string) error {
	if jobType == "" {
		jobType = "extract"
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	nowStr := now()

	return c.withImmediateTx(context.Background(), func(ctx context.Context, conn *sql.Conn) error {
		var existingID int64
		err := conn.QueryRowContext(ctx, `SELECT id FROM session_jobs WHERE run_id = ? AND job_type = ?`, runID, jobType).Scan(&existingID)
		switch {
		case err == sql.ErrNoRows:
			_, err = conn.ExecContext(ctx, `
				INSERT INTO session_jobs (
					run_id, job_type, status, attempts, max_attempts, trigger,
					available_at, created_at, updated_at
				) VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?)`,
				runID, jobType, JobPending, maxAttempts, trigger, nowStr, nowStr, nowStr)
			if err != nil {
				return fmt.Errorf("enqueue_job: insert: %w", err)
			}
		case err != nil:
			return fmt.Errorf("enqueue_job: lookup: %w", err)
		default:
			if !force {
				return nil // already enqueued, leave as-is
			}
			_, err = conn.ExecContext(ctx, `
				UPDATE session_jobs SET
					status = ?, attempts = 0, max_attempts = ?, trigger = ?,
					available_at = ?, claimed_at = NULL, completed_at = NULL,
					heartbeat_at = NULL, error = NULL, updated_at = ?
				WHERE id = ?`,
				JobPending, maxAttempts, trigger, nowStr, nowStr, existingID)
			if err != nil {
				return fmt.Errorf("enqueue_job: reset: %w", err)
			}
		}
		return nil
	})
}

// ClaimJobs reclaims stale running jobs and claims up to limit
// pending/failed jobs whose available_at has elapsed, all inside one
// BEGIN IMMEDIATE transaction so reclaim and claim can never straddle a
// concurrent claimer (§4.1 "claim_jobs", §5 ordering guarantees).
func (c *Catalog) ClaimJobs(limit int, runIDs []string, jobType string, timeoutSeconds int) ([]QueueJob, error) {
	if jobType == "" {
		jobType = "extract"
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 300
	}
	if limit <= 0 {
		limit = 1
	}

	nowT := time.Now().UTC()
	staleBefore := nowT.Add(-time.Duration(timeoutSeconds) * time.Second).Format(time.RFC3339)
	nowStr := nowT.Format(time.RFC3339)

	var claimed []QueueJob
	err := c.withImmediateTx(context.Background(), func(ctx context.Context, conn *sql.Conn) error {
		// Step 1: reclaim stale running jobs.
		staleRows, err := conn.QueryContext(ctx, `
			SELECT id, attempts, max_attempts FROM session_jobs
			WHERE job_type = ? AND status = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)`,
			jobType, JobRunning, staleBefore)
		if err != nil {
			return fmt.Errorf("claim_jobs: stale query: %w", err)
		}
		type stale struct {
			id, attempts, maxAttempts int64
		}
		var staleJobs []stale
		for staleRows.Next() {
			var s stale
			if err := staleRows.Scan(&s.id, &s.attempts, &s.maxAttempts); err != nil {
				staleRows.Close()
				return fmt.Errorf("claim_jobs: stale scan: %w", err)
			}
			staleJobs = append(staleJobs, s)
		}
		staleRows.Close()

		for _, s := range staleJobs {
			if s.attempts >= s.maxAttempts {
				_, err = conn.ExecContext(ctx, `UPDATE session_jobs SET status = ?, updated_at = ? WHERE id = ?`,
					JobDeadLetter, nowStr, s.id)
			} else {
				_, err = conn.ExecContext(ctx, `
					UPDATE session_jobs SET status = ?, available_at = ?, updated_at = ? WHERE id = ?`,
					JobPending, nowStr, nowStr, s.id)
			}
			if err != nil {
				return fmt.Errorf("claim_jobs: reclaim: %w", err)
			}
		}

		// Step 2: select claimable jobs.
		query := `
			SELECT id FROM session_jobs
			WHERE job_type = ? AND status IN (?, ?) AND available_at <= ?`
		args := []any{jobType, JobPending, JobFailed, nowStr}
		if len(runIDs) > 0 {
			placeholders := make([]string, len(runIDs))
			for i, id := range runIDs {
				placeholders[i] = "?"
				args = append(args, id)
			}
			query += fmt.Sprintf(" AND run_id IN (%s)", strings.Join(placeholders, ", "))
		}
		query += ` ORDER BY start_time DESC, available_at ASC, id ASC LIMIT ?`
		args = append(args, limit)

		idRows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("claim_jobs: select: %w", err)
		}
		var ids []int64
		for idRows.Next() {
			var id int64
			if err := idRows.Scan(&id); err != nil {
				idRows.Close()
				return fmt.Errorf("claim_jobs: select scan: %w", err)
			}
			ids = append(ids, id)
		}
		idRows.Close()

		// Step 3: claim each.
		for _, id := range ids {
			_, err = conn.ExecContext(ctx, `
				UPDATE session_jobs SET
					attempts = attempts + 1, status = ?, claimed_at = ?,
					heartbeat_at = ?, updated_at = ?
				WHERE id = ?`, JobRunning, nowStr, nowStr, nowStr, id)
			if err != nil {
				return fmt.Errorf("claim_jobs: claim: %w", err)
			}

			job, err := scanQueueJobByID(ctx, conn, id)
			if err != nil {
				return fmt.Errorf("claim_jobs: reload: %w", err)
			}
			claimed = append(claimed, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

const queueJobColumns = `
	id, run_id, job_type, agent_type, session_path, start_time, status,
	attempts, max_attempts, trigger, available_at, claimed_at, completed_at,
	heartbeat_at, error, created_at, updated_at`

func scanQueueJobByID(ctx context.Context, conn *sql.Conn, id int64) (QueueJob, error) {
	row := conn.QueryRowContext(ctx, `SELECT `+queueJobColumns+` FROM session_jobs WHERE id = ?`, id)
	return scanQueueJob(row)
}

func scanQueueJob(scanner interface {
	Scan(dest ...any) error
}) (QueueJob, error) {
	var j QueueJob
	var startTime, availableAt, claimedAt, completedAt, heartbeatAt, createdAt, updatedAt sql.NullString
	var agentType, sessionPath, trigger, errMsg sql.NullString
	err := scanner.Scan(
		&j.ID, &j.RunID, &j.JobType, &agentType, &sessionPath, &startTime,
		&j.Status, &j.Attempts, &j.MaxAttempts, &trigger, &availableAt,
		&claimedAt, &completedAt, &heartbeatAt, &errMsg, &createdAt, &updatedAt,
	)
	if err != nil {
		return j, err
	}
	j.AgentType = agentType.String
	j.SessionPath = sessionPath.String
	j.Trigger = trigger.String
	j.Error = errMsg.String
	j.StartTime = parseNullableTime(startTime)
	j.ClaimedAt = parseNullableTime(claimedAt)
	j.CompletedAt = parseNullableTime(completedAt)
	j.HeartbeatAt = parseNullableTime(heartbeatAt)
	if t := parseNullableTime(availableAt); t != nil {
		j.AvailableAt = *t
	}
	if t := parseNullableTime(createdAt); t != nil {
		j.CreatedAt = *t
	}
	if t := parseNullableTime(updatedAt); t != nil {
		j.UpdatedAt = *t
	}
	return j, nil
}

// Heartbeat bumps heartbeat_at/updated_at for a running job (§4.1
// "heartbeat"). A no-op if the job isn't currently running.
func (c *Catalog) Heartbeat(runID, jobType string) error {
	if jobType == "" {
		jobType = "extract"
	}
	nowStr := now()
	_, err := c.db.Exec(`
		UPDATE session_jobs SET heartbeat_at = ?, updated_at = ?
		WHERE run_id = ? AND job_type = ? AND status = ?`,
		nowStr, nowStr, runID, jobType, JobRunning)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// Complete marks a running job done (§4.1 "complete").
func (c *Catalog) Complete(runID, jobType string) error {
	if jobType == "" {
		jobType = "extract"
	}
	nowStr := now()
	_, err := c.db.Exec(`
		UPDATE session_jobs SET status = ?, completed_at = ?, updated_at = ?
		WHERE run_id = ? AND job_type = ?`, JobDone, nowStr, nowStr, runID, jobType)
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	return nil
}

// BackoffSeconds computes the exponential backoff delay for the given
// attempt count, min(30·2^(attempts-1), 3600) per §3.
func BackoffSeconds(attempts int) int {
	if attempts < 1 {
		attempts = 1
	}
	delay := 30 * math.Pow(2, float64(attempts-1))
	if delay > 3600 {
		delay = 3600
	}
	return int(delay)
}

// Fail marks a job failed with backoff, or dead_letter if attempts is
// already at max_attempts (§4.1 "fail", §3 state transitions).
func (c *Catalog) Fail(runID, jobType, errMsg string) error {
	if jobType == "" {
		jobType = "extract"
	}

	return c.withImmediateTx(context.Background(), func(ctx context.Context, conn *sql.Conn) error {
		var attempts, maxAttempts int
		err := conn.QueryRowContext(ctx, `SELECT attempts, max_attempts FROM session_jobs WHERE run_id = ? AND job_type = ?`,
			runID, jobType).Scan(&attempts, &maxAttempts)
		if err != nil {
			return fmt.Errorf("fail: lookup: %w", err)
		}

		nowStr := now()
		if attempts >= maxAttempts {
			_, err = conn.ExecContext(ctx, `
				UPDATE session_jobs SET status = ?, error = ?, updated_at = ?
				WHERE run_id = ? AND job_type = ?`, JobDeadLetter, errMsg, nowStr, runID, jobType)
		} else {
			backoff := BackoffSeconds(attempts)
			availableAt := time.Now().UTC().Add(time.Duration(backoff) * time.Second).Format(time.RFC3339)
			_, err = conn.ExecContext(ctx, `
				UPDATE session_jobs SET status = ?, error = ?, available_at = ?, updated_at = ?
				WHERE run_id = ? AND job_type = ?`, JobFailed, errMsg, availableAt, nowStr, runID, jobType)
		}
		if err != nil {
			return fmt.Errorf("fail: update: %w", err)
		}
		return nil
	})
}

// CountJobsByStatus returns a zero-filled map of every canonical status to
// its current row count (§4.1 "count_jobs_by_status").
func (c *Catalog) CountJobsByStatus() (map[string]int, error) {
	counts := map[string]int{
		JobPending: 0, JobRunning: 0, JobDone: 0, JobFailed: 0, JobDeadLetter: 0,
	}
	rows, err := c.db.Query(`SELECT status, COUNT(*) FROM session_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count_jobs_by_status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count_jobs_by_status: scan: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// RecordServiceRun appends one row to service_runs (append-only audit
// log, §3 "Service-run audit").
func (c *Catalog) RecordServiceRun(run ServiceRun) error {
	_, err := c.db.Exec(`
		INSERT INTO service_runs (job_type, status, started_at, completed_at, trigger, details_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.JobType, run.Status, run.StartedAt.UTC().Format(time.RFC3339),
		nullableTime(run.CompletedAt), run.Trigger, run.DetailsJSON)
	if err != nil {
		return fmt.Errorf("record_service_run: %w", err)
	}
	return nil
}

// LatestServiceRun returns the most recent service_runs row for jobType,
// or nil if none exists.
func (c *Catalog) LatestServiceRun(jobType string) (*ServiceRun, error) {
	row := c.db.QueryRow(`
		SELECT id, job_type, status, started_at, completed_at, trigger, details_json
		FROM service_runs WHERE job_type = ? ORDER BY started_at DESC LIMIT 1`, jobType)

	var run ServiceRun
	var startedAt, completedAt sql.NullString
	err := row.Scan(&run.ID, &run.JobType, &run.Status, &startedAt, &completedAt, &run.Trigger, &run.DetailsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest_service_run: %w", err)
	}
	if t := parseNullableTime(startedAt); t != nil {
		run.StartedAt = *t
	}
	run.CompletedAt = parseNullableTime(completedAt)
	return &run, nil
}
