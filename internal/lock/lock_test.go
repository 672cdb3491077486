package lock

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lerim-dev/lerim/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "writer.lock")
}

func TestAcquireAndRelease(t *testing.T) {
	path := lockPath(t)
	l := New(path, 60)

	require.NoError(t, l.Acquire("tester", "lerim sync"))
	assert.True(t, l.Held())
	assert.FileExists(t, path)

	require.NoError(t, l.Release())
	assert.False(t, l.Held())
	assert.NoFileExists(t, path)
}

func TestAcquireFailsWhileLiveOwnerHolds(t *testing.T) {
	path := lockPath(t)
	first := New(path, 60)
	require.NoError(t, first.Acquire("tester-1", "lerim sync"))

	second := New(path, 60)
	err := second.Acquire("tester-2", "lerim maintain")
	require.Error(t, err)

	var busy *errs.LockBusy
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, "tester-1", busy.Owner)
	assert.True(t, errors.Is(err, errs.ErrLockBusy))
}

func TestAcquireStealsStaleLock(t *testing.T) {
	path := lockPath(t)

	// Simulate a lock left behind by a dead process: a PID that is not
	// running on this host, heartbeat far in the past.
	stale := State{
		PID:         999999999, // astronomically unlikely to be a live PID
		Owner:       "dead-owner",
		Command:     "lerim sync",
		StartedAt:   time.Now().UTC().Add(-1 * time.Hour).Format(time.RFC3339),
		HeartbeatAt: time.Now().UTC().Add(-1 * time.Hour).Format(time.RFC3339),
		Host:        hostnameForTest(),
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	l := New(path, 60)
	require.NoError(t, l.Acquire("new-owner", "lerim sync"))
	assert.True(t, l.Held())
}

func TestReleaseOnlyRemovesOwnLock(t *testing.T) {
	path := lockPath(t)
	l := New(path, 60)
	require.NoError(t, l.Acquire("tester", "lerim sync"))

	// Simulate another process stealing the file after a stale reclaim.
	other := State{PID: l.state.PID + 1, Owner: "other", HeartbeatAt: time.Now().UTC().Format(time.RFC3339), StartedAt: time.Now().UTC().Format(time.RFC3339)}
	data, err := json.Marshal(other)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	require.NoError(t, l.Release())
	assert.FileExists(t, path) // not removed: pid mismatch
}

func TestHeartbeatUpdatesTimestamp(t *testing.T) {
	path := lockPath(t)
	l := New(path, 60)
	require.NoError(t, l.Acquire("tester", "lerim sync"))

	before := l.state.HeartbeatAt
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, l.Heartbeat())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var state State
	require.NoError(t, json.Unmarshal(data, &state))
	assert.NotEqual(t, before, state.HeartbeatAt)
}

func TestRunHeartbeatStopsOnCancel(t *testing.T) {
	path := lockPath(t)
	l := New(path, 60)
	require.NoError(t, l.Acquire("tester", "lerim sync"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.RunHeartbeat(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunHeartbeat did not stop after cancel")
	}
}

func hostnameForTest() string {
	h, _ := os.Hostname()
	return h
}
