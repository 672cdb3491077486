package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/lerim-dev/lerim/internal/daemon"
	"github.com/lerim-dev/lerim/internal/maintainpipeline"
	"github.com/lerim-dev/lerim/internal/syncpipeline"
)

// cronIntervalFunc builds a daemon.Scheduler interval override from a cron
// expression: the wait is however long remains until the expression's
// next occurrence after now. Returns nil when expr is empty, letting the
// scheduler fall back to its fixed-duration field.
func cronIntervalFunc(expr string) func(now time.Time) time.Duration {
	if expr == "" {
		return nil
	}
	return func(now time.Time) time.Duration {
		next, err := gronx.NextTickAfter(expr, now, false)
		if err != nil {
			slog.Error("cron expression failed, falling back to one hour", "expr", expr, "error", err)
			return time.Hour
		}
		return next.Sub(now)
	}
}

// SyncPipeline builds the syncpipeline.Pipeline bound to this Runtime's
// catalog, adapter registry, primary layout, and queue/lock config, with
// its AgentInvoker wired to SyncInvoker.
func (rt *Runtime) SyncPipeline() *syncpipeline.Pipeline {
	return &syncpipeline.Pipeline{
		Catalog:    rt.Catalog,
		Registry:   rt.Adapters,
		Layout:     rt.PrimaryLayout,
		Queue:      rt.Config.Queue,
		LockConfig: rt.Config.Lock,
		Invoker:    rt.SyncInvoker(),
	}
}

// MaintainPipeline builds the maintainpipeline.Pipeline bound to this
// Runtime's catalog, access tracker, primary layout, and decay/lock
// config, with its AgentInvoker wired to MaintainInvoker.
func (rt *Runtime) MaintainPipeline() *maintainpipeline.Pipeline {
	return &maintainpipeline.Pipeline{
		Catalog:    rt.Catalog,
		Tracker:    rt.Tracker,
		Layout:     rt.PrimaryLayout,
		Decay:      rt.Config.Decay,
		LockConfig: rt.Config.Lock,
		Invoker:    rt.MaintainInvoker(),
	}
}

// Scheduler builds the daemon.Scheduler bound to this Runtime's sync and
// maintain pipelines, run on the intervals from config (§4.4). trigger is
// recorded on every service-run row the scheduler produces.
func (rt *Runtime) Scheduler(trigger string) *daemon.Scheduler {
	syncPipeline := rt.SyncPipeline()
	maintainPipeline := rt.MaintainPipeline()

	return &daemon.Scheduler{
		SyncInterval:         time.Duration(rt.Config.Daemon.SyncIntervalMinutes) * time.Minute,
		MaintainInterval:     time.Duration(rt.Config.Daemon.MaintainIntervalMinutes) * time.Minute,
		SyncIntervalFunc:     cronIntervalFunc(rt.Config.Daemon.SyncCron),
		MaintainIntervalFunc: cronIntervalFunc(rt.Config.Daemon.MaintainCron),
		RunSync: func(ctx context.Context) error {
			_, err := syncPipeline.Run(ctx, syncpipeline.Options{Trigger: trigger})
			return err
		},
		RunMaintain: func(ctx context.Context) error {
			_, err := maintainPipeline.Run(ctx, maintainpipeline.Options{Trigger: trigger})
			return err
		},
	}
}
