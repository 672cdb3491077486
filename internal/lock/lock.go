// Package lock implements the advisory inter-process writer lock described
// in §4.3: a single file under index/writer.lock, acquired with an
// exclusive create, carrying JSON state that lets any process on the same
// host decide whether the lock's owner is still alive.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/lerim-dev/lerim/internal/errs"
)

// State is the JSON payload written into the lock file.
type State struct {
	PID         int    `json:"pid"`
	Owner       string `json:"owner"`
	Command     string `json:"command"`
	StartedAt   string `json:"started_at"`
	HeartbeatAt string `json:"heartbeat_at"`
	Host        string `json:"host"`
}

// Lock is an acquired or released handle on one writer.lock file.
type Lock struct {
	path         string
	staleSeconds int
	held         bool
	state        State
}

// New returns a Lock bound to path, with staleSeconds controlling how long
// a heartbeat may go stale before the lock is considered abandoned.
func New(path string, staleSeconds int) *Lock {
	if staleSeconds <= 0 {
		staleSeconds = 60
	}
	return &Lock{path: path, staleSeconds: staleSeconds}
}

// Acquire implements §4.3's algorithm: exclusive create, and on collision,
// check the current owner's liveness before stealing the lock. Returns
// *errs.LockBusy (satisfying errs.ErrLockBusy via errors.Is) if another live
// owner holds it.
func (l *Lock) Acquire(owner, command string) error {
	state, err := l.tryCreate(owner, command)
	if err == nil {
		l.held = true
		l.state = state
		return nil
	}
	if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("lock: create: %w", err)
	}

	current, readErr := l.readState()
	if readErr != nil {
		// The file vanished between the failed create and our read
		// (another process released it); retry once.
		state, err = l.tryCreate(owner, command)
		if err == nil {
			l.held = true
			l.state = state
			return nil
		}
		return fmt.Errorf("lock: retry after read failure: %w", err)
	}

	if l.ownerIsAlive(current) {
		return &errs.LockBusy{Owner: current.Owner, PID: current.PID, Host: current.Host, StartedAt: current.StartedAt}
	}

	// Stale: unlink and retry once.
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("lock: remove stale: %w", err)
	}
	state, err = l.tryCreate(owner, command)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			current, readErr = l.readState()
			if readErr == nil {
				return &errs.LockBusy{Owner: current.Owner, PID: current.PID, Host: current.Host, StartedAt: current.StartedAt}
			}
		}
		return fmt.Errorf("lock: retry create: %w", err)
	}
	l.held = true
	l.state = state
	return nil
}

func (l *Lock) tryCreate(owner, command string) (State, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return State{}, err
	}
	defer f.Close()

	host, _ := os.Hostname()
	now := time.Now().UTC().Format(time.RFC3339)
	state := State{
		PID:         os.Getpid(),
		Owner:       owner,
		Command:     command,
		StartedAt:   now,
		HeartbeatAt: now,
		Host:        host,
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(state); err != nil {
		return State{}, fmt.Errorf("lock: encode state: %w", err)
	}
	return state, nil
}

func (l *Lock) readState() (State, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("lock: decode state: %w", err)
	}
	return state, nil
}

// ownerIsAlive reports whether current's owner is still running on this
// host and has heartbeated within staleSeconds.
func (l *Lock) ownerIsAlive(current State) bool {
	host, _ := os.Hostname()
	if current.Host != "" && current.Host != host {
		// Different host: we cannot check PID liveness, so trust the
		// heartbeat alone.
		return l.heartbeatFresh(current)
	}
	if !processAlive(current.PID) {
		return false
	}
	return l.heartbeatFresh(current)
}

func (l *Lock) heartbeatFresh(current State) bool {
	hb, err := time.Parse(time.RFC3339, current.HeartbeatAt)
	if err != nil {
		return false
	}
	return time.Since(hb) < time.Duration(l.staleSeconds)*time.Second
}

// processAlive reports whether pid refers to a live process on this host,
// using signal 0 (no-op signal used purely to probe existence/permission).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, os.ErrPermission)
}

// Heartbeat rewrites the lock file's heartbeat_at, keeping it alive for
// long-running sync/maintain cycles. No-op if this Lock does not currently
// hold the file.
func (l *Lock) Heartbeat() error {
	if !l.held {
		return nil
	}
	l.state.HeartbeatAt = time.Now().UTC().Format(time.RFC3339)
	return l.writeState()
}

func (l *Lock) writeState() error {
	data, err := json.Marshal(l.state)
	if err != nil {
		return fmt.Errorf("lock: encode state: %w", err)
	}
	return os.WriteFile(l.path, data, 0o644)
}

// Release unlinks the lock file, but only if this Lock's own PID matches
// the state currently on disk (§4.3: "only unlink if current state's pid
// equals ours").
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	current, err := l.readState()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.held = false
			return nil
		}
		return fmt.Errorf("lock: release: read: %w", err)
	}
	if current.PID != l.state.PID {
		// Someone else's lock now; not ours to remove.
		l.held = false
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("lock: release: remove: %w", err)
	}
	l.held = false
	return nil
}

// Held reports whether this Lock currently believes it holds the file.
func (l *Lock) Held() bool { return l.held }
