package httpapi

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// jobStatus is one background sync/maintain invocation's current state,
// kept in memory only — it does not survive a process restart, matching
// §5 "write endpoints spawn a background worker and return {status, job_id}
// immediately".
type jobStatus struct {
	ID        string     `json:"job_id"`
	Kind      string     `json:"kind"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// jobRegistry tracks background sync/maintain jobs kicked off by the HTTP
// API, analogous to the teacher's in-memory session map in
// pkg/session/manager.go but scoped to one-shot background invocations
// rather than long-lived alert sessions.
type jobRegistry struct {
	mu   sync.Mutex
	jobs map[string]*jobStatus
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: make(map[string]*jobStatus)}
}

// start records a new running job and launches fn in a goroutine, updating
// the job's terminal status when fn returns. Handlers must never block on
// fn themselves (§5).
func (r *jobRegistry) start(kind string, fn func(ctx context.Context) error) *jobStatus {
	job := &jobStatus{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    "started",
		StartedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	go func() {
		err := fn(context.Background())
		now := time.Now().UTC()

		r.mu.Lock()
		defer r.mu.Unlock()
		job.EndedAt = &now
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			slog.Error("background job failed", "kind", kind, "job_id", job.ID, "error", err)
			return
		}
		job.Status = "done"
	}()

	return job
}

func (r *jobRegistry) get(id string) (*jobStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	clone := *job
	return &clone, true
}
