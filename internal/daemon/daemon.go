// Package daemon implements the cooperative scheduler that triggers
// recurring sync and maintain cycles on independent intervals (§4.4).
// Grounded on the teacher's pkg/queue/pool.go Start/Stop goroutine
// lifecycle (stopCh, sync.Once, sync.WaitGroup) and pkg/queue/orphan.go's
// ticker-driven loop, generalized from one ticker to two independent
// next-due timers selected by min().
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CycleRunner triggers one sync or maintain cycle. Injected so this
// package never depends on syncpipeline/maintainpipeline directly.
type CycleRunner func(ctx context.Context) error

// Scheduler runs RunSync and RunMaintain on their own independent
// intervals until Stop is called.
type Scheduler struct {
	SyncInterval     time.Duration
	MaintainInterval time.Duration
	RunSync          CycleRunner
	RunMaintain      CycleRunner

	// SyncIntervalFunc/MaintainIntervalFunc, when set, override
	// SyncInterval/MaintainInterval: each is called with the current time
	// after a cycle runs (or at startup) to compute the wait until the next
	// one, letting a cron expression replace a fixed period (§6 "daemon").
	SyncIntervalFunc     func(now time.Time) time.Duration
	MaintainIntervalFunc func(now time.Time) time.Duration

	// Now overrides time.Now (tests only).
	Now func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Start spawns the scheduler goroutine. Safe to call once; subsequent
// calls are no-ops, mirroring WorkerPool.Start's started-guard idiom.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		slog.Warn("daemon scheduler already started, ignoring duplicate Start call")
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop signals the scheduler to stop and waits for the current tick (if
// any) to finish. In-flight cycles finish their current claim but no new
// cycle starts after Stop is called.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
		}
	})
	s.wg.Wait()
}

// RunOnce runs a single sync cycle followed by a single maintain cycle
// and returns, implementing one-shot mode (§4.4). Per-cycle failures are
// logged, not propagated — they never stop the other cycle from running.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if err := s.RunSync(ctx); err != nil {
		slog.Error("one-shot sync cycle failed", "error", err)
	}
	if err := s.RunMaintain(ctx); err != nil {
		slog.Error("one-shot maintain cycle failed", "error", err)
	}
}

// syncInterval returns the delay until the next sync cycle, from
// SyncIntervalFunc when set, else the fixed SyncInterval.
func (s *Scheduler) syncInterval(now time.Time) time.Duration {
	if s.SyncIntervalFunc != nil {
		return s.SyncIntervalFunc(now)
	}
	return s.SyncInterval
}

func (s *Scheduler) maintainInterval(now time.Time) time.Duration {
	if s.MaintainIntervalFunc != nil {
		return s.MaintainIntervalFunc(now)
	}
	return s.MaintainInterval
}

// run is the forever-mode loop: sleep until the earlier of the two
// next-due times, run whichever cycle(s) are due (sync first when both
// are due), reschedule, repeat until stopCh closes.
func (s *Scheduler) run(ctx context.Context) {
	now := s.now()
	nextSync := now.Add(s.syncInterval(now))
	nextMaintain := now.Add(s.maintainInterval(now))

	for {
		now = s.now()
		wait := minDuration(nextSync.Sub(now), nextMaintain.Sub(now))
		if wait > 0 {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}

		select {
		case <-s.stopCh:
			return
		default:
		}

		now = s.now()
		if !now.Before(nextSync) {
			if err := s.RunSync(ctx); err != nil {
				slog.Error("scheduled sync cycle failed", "error", err)
			}
			nextSync = s.now().Add(s.syncInterval(s.now()))
		}
		if !now.Before(nextMaintain) {
			if err := s.RunMaintain(ctx); err != nil {
				slog.Error("scheduled maintain cycle failed", "error", err)
			}
			nextMaintain = s.now().Add(s.maintainInterval(s.now()))
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
