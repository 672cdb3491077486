package access

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestTracker(t *testing.T) *Tracker {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memories.sqlite3")
	tr, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestIsTrackableMemoryID(t *testing.T) {
	assert.True(t, IsTrackableMemoryID("20260115-retry-backoff-tuning"))
	assert.False(t, IsTrackableMemoryID("summary-2026"))
	assert.False(t, IsTrackableMemoryID("20260115")) // no slug
}

func TestRecordWriteAlwaysCounts(t *testing.T) {
	tr := openTestTracker(t)
	require.NoError(t, tr.RecordWrite("20260115-retry-backoff-tuning", "/memory"))
	require.NoError(t, tr.RecordWrite("20260115-retry-backoff-tuning", "/memory"))

	rec, err := tr.Get("20260115-retry-backoff-tuning", "/memory")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.AccessCount)
}

func TestRecordReadRespectsPreviewWindow(t *testing.T) {
	tr := openTestTracker(t)

	require.NoError(t, tr.RecordRead("20260115-retry-backoff-tuning", "/memory", 10))
	rec, err := tr.Get("20260115-retry-backoff-tuning", "/memory")
	require.NoError(t, err)
	assert.Nil(t, rec) // within the frontmatter window, doesn't count

	require.NoError(t, tr.RecordRead("20260115-retry-backoff-tuning", "/memory", 50))
	rec, err = tr.Get("20260115-retry-backoff-tuning", "/memory")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.AccessCount)

	require.NoError(t, tr.RecordRead("20260115-retry-backoff-tuning", "/memory", 0)) // absent limit = full file
	rec, err = tr.Get("20260115-retry-backoff-tuning", "/memory")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.AccessCount)
}

func TestNonMemoryFilenamesAreIgnored(t *testing.T) {
	tr := openTestTracker(t)
	require.NoError(t, tr.RecordWrite("summary-weekly", "/memory"))
	rec, err := tr.Get("summary-weekly", "/memory")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestListByRoot(t *testing.T) {
	tr := openTestTracker(t)
	require.NoError(t, tr.RecordWrite("20260101-a", "/memory"))
	require.NoError(t, tr.RecordWrite("20260102-b", "/memory"))
	require.NoError(t, tr.RecordWrite("20260102-b", "/other-root"))

	recs, err := tr.ListByRoot("/memory")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestEffectiveConfidenceMonotoneAndClamped(t *testing.T) {
	policy := DecayPolicy{DecayDays: 30, MinFloor: 0.2, GraceDays: 7}

	fresh := EffectiveConfidence(0.9, 0, policy)
	assert.InDelta(t, 0.9, fresh, 1e-9)

	mid := EffectiveConfidence(0.9, 15, policy)
	stale := EffectiveConfidence(0.9, 60, policy)
	assert.Less(t, mid, fresh)
	assert.Less(t, stale, mid)

	// Clamped at min_floor * confidence even far past decay_days.
	assert.InDelta(t, 0.9*0.2, EffectiveConfidence(0.9, 10000, policy), 1e-9)
}

func TestWithinGracePeriod(t *testing.T) {
	policy := DecayPolicy{DecayDays: 30, MinFloor: 0.2, GraceDays: 7}
	assert.True(t, WithinGracePeriod(3, policy))
	assert.True(t, WithinGracePeriod(7, policy))
	assert.False(t, WithinGracePeriod(7.1, policy))
}
