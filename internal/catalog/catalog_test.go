package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.sqlite3")
	c, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestIndexSessionAndFetch(t *testing.T) {
	c := openTestCatalog(t)

	doc := SessionDoc{
		RunID:       "run-1",
		AgentType:   "claude",
		RepoName:    "lerim",
		Content:     "hello world",
		Status:      "completed",
		ContentHash: "abc123",
	}
	require.NoError(t, c.IndexSession(doc))

	got, err := c.Fetch("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "claude", got.AgentType)
	assert.Equal(t, "abc123", got.ContentHash)

	missing, err := c.Fetch("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIndexSessionIsIdempotentUpsert(t *testing.T) {
	c := openTestCatalog(t)

	require.NoError(t, c.IndexSession(SessionDoc{RunID: "run-1", AgentType: "claude", ContentHash: "v1"}))
	require.NoError(t, c.IndexSession(SessionDoc{RunID: "run-1", AgentType: "claude", ContentHash: "v2"}))

	got, err := c.Fetch("run-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.ContentHash)

	var count int
	require.NoError(t, c.db.QueryRow(`SELECT COUNT(*) FROM session_docs WHERE run_id = ?`, "run-1").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUpdateExtractFieldsPartial(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.IndexSession(SessionDoc{RunID: "run-1", AgentType: "claude", Outcome: "pending"}))

	summary := "a summary"
	require.NoError(t, c.UpdateExtractFields("run-1", &summary, nil, nil))

	got, err := c.Fetch("run-1")
	require.NoError(t, err)
	assert.Equal(t, "a summary", got.SummaryText)
	assert.Equal(t, "pending", got.Outcome) // untouched field survives
}

func TestListWindowOrderingAndPaging(t *testing.T) {
	c := openTestCatalog(t)

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.IndexSession(SessionDoc{RunID: "r1", AgentType: "claude", StartTime: &t1}))
	require.NoError(t, c.IndexSession(SessionDoc{RunID: "r2", AgentType: "claude", StartTime: &t2}))
	require.NoError(t, c.IndexSession(SessionDoc{RunID: "r3", AgentType: "codex", StartTime: &t3}))

	result, err := c.ListWindow(ListWindowParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "r3", result.Rows[0].RunID) // newest start_time first
	assert.Equal(t, "r2", result.Rows[1].RunID)

	filtered, err := c.ListWindow(ListWindowParams{Limit: 10, AgentTypes: []string{"codex"}})
	require.NoError(t, err)
	assert.Equal(t, 1, filtered.Total)
	assert.Equal(t, "r3", filtered.Rows[0].RunID)
}

func TestEnqueueClaimCompleteLifecycle(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.IndexSession(SessionDoc{RunID: "run-1", AgentType: "claude"}))
	require.NoError(t, c.EnqueueJob("run-1", "extract", false, 3, "sync"))

	counts, err := c.CountJobsByStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[JobPending])

	claimed, err := c.ClaimJobs(10, nil, "extract", 300)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, JobRunning, claimed[0].Status)
	assert.Equal(t, 1, claimed[0].Attempts)

	// A second claim finds nothing more to do.
	again, err := c.ClaimJobs(10, nil, "extract", 300)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, c.Heartbeat("run-1", "extract"))
	require.NoError(t, c.Complete("run-1", "extract"))

	counts, err = c.CountJobsByStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[JobDone])
}

func TestEnqueueJobForceResets(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.EnqueueJob("run-1", "extract", false, 3, "sync"))
	claimed, err := c.ClaimJobs(10, nil, "extract", 300)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, c.Complete("run-1", "extract"))

	require.NoError(t, c.EnqueueJob("run-1", "extract", true, 3, "sync"))
	counts, err := c.CountJobsByStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[JobPending])
	assert.Equal(t, 0, counts[JobDone])
}

func TestFailAppliesBackoffThenDeadLetters(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.EnqueueJob("run-1", "extract", false, 2, "sync"))

	_, err := c.ClaimJobs(10, nil, "extract", 300)
	require.NoError(t, err)
	require.NoError(t, c.Fail("run-1", "extract", "boom"))

	counts, err := c.CountJobsByStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[JobFailed])

	_, err = c.ClaimJobs(10, nil, "extract", 300)
	require.NoError(t, err)
	// available_at is in the future (backoff), so no claim happens yet.
	counts, err = c.CountJobsByStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[JobFailed])

	// Once the backoff has elapsed the job is claimed again (attempts=2),
	// so the next failure reaches max_attempts and dead-letters it.
	elapsed := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	_, err = c.db.Exec(`UPDATE session_jobs SET available_at = ? WHERE run_id = ?`, elapsed, "run-1")
	require.NoError(t, err)
	reclaimed, err := c.ClaimJobs(10, nil, "extract", 300)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)

	require.NoError(t, c.Fail("run-1", "extract", "boom again"))
	counts, err = c.CountJobsByStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[JobDeadLetter])
}

func TestClaimJobsReclaimsStaleRunning(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.EnqueueJob("run-1", "extract", false, 3, "sync"))
	_, err := c.ClaimJobs(10, nil, "extract", 300)
	require.NoError(t, err)

	// Force the heartbeat far enough into the past to count as stale.
	stale := time.Now().UTC().Add(-10 * time.Minute).Format(time.RFC3339)
	_, err = c.db.Exec(`UPDATE session_jobs SET heartbeat_at = ? WHERE run_id = ?`, stale, "run-1")
	require.NoError(t, err)

	claimed, err := c.ClaimJobs(10, nil, "extract", 300) // 300s timeout, staler than that
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, 2, claimed[0].Attempts)
}

func TestBackoffSeconds(t *testing.T) {
	assert.Equal(t, 30, BackoffSeconds(1))
	assert.Equal(t, 60, BackoffSeconds(2))
	assert.Equal(t, 120, BackoffSeconds(3))
	assert.Equal(t, 3600, BackoffSeconds(20))
}

func TestRecordAndLatestServiceRun(t *testing.T) {
	c := openTestCatalog(t)
	started := time.Now().UTC()
	require.NoError(t, c.RecordServiceRun(ServiceRun{
		JobType: "sync", Status: RunCompleted, StartedAt: started, DetailsJSON: `{"indexed":3}`,
	}))

	run, err := c.LatestServiceRun("sync")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunCompleted, run.Status)

	none, err := c.LatestServiceRun("maintain")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSearchMatchesFTS(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.IndexSession(SessionDoc{RunID: "r1", AgentType: "claude", Content: "fixed the race condition in the scheduler"}))
	require.NoError(t, c.IndexSession(SessionDoc{RunID: "r2", AgentType: "claude", Content: "added a new CLI flag"}))

	results, err := c.Search("scheduler", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].RunID)
}
