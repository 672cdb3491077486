package lock

import (
	"context"
	"log/slog"
	"time"
)

// RunHeartbeat periodically rewrites the lock's heartbeat_at until ctx is
// canceled, mirroring the per-job heartbeat goroutine shape used for queue
// jobs. Callers run this in its own goroutine for the duration of a sync or
// maintain cycle and cancel ctx when the cycle ends.
func (l *Lock) RunHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Heartbeat(); err != nil {
				slog.Warn("lock heartbeat failed", "path", l.path, "error", err)
			}
		}
	}
}
