// Package syncpipeline implements the sync cycle (§4.5): window resolution,
// writer-lock acquisition, adapter discovery or a single targeted run,
// per-job claim/heartbeat/invoke/complete-or-fail processing, and the
// final service-run record. Grounded on the teacher's
// pkg/queue/worker.go pollAndProcess loop (claim, heartbeat goroutine,
// execute, terminal status, cleanup), generalized from one ent-backed
// session queue to the catalog's session_jobs table.
package syncpipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lerim-dev/lerim/internal/adapters"
	"github.com/lerim-dev/lerim/internal/catalog"
	"github.com/lerim-dev/lerim/internal/config"
	"github.com/lerim-dev/lerim/internal/errs"
	"github.com/lerim-dev/lerim/internal/lock"
	"github.com/lerim-dev/lerim/internal/pathlayout"
	"github.com/lerim-dev/lerim/internal/runtimeagent"
)

// AgentInvoker drives one lead-agent sync-mode invocation for a claimed
// job, writing extract.json/summary.json/memory_actions.json/
// subagents.log into runFolder. Injected so this package stays free of
// any concrete LLM/prompt wiring (mirrored from the teacher's
// sessionExecutor.Execute injection point).
type AgentInvoker func(ctx context.Context, job catalog.QueueJob, runFolder string) error

// Options carries one sync invocation's inputs (§4.5 "Inputs").
type Options struct {
	RunID       string
	AgentNames  []string
	Window      string
	Since       string
	Until       string
	MaxSessions int
	NoExtract   bool
	Force       bool
	DryRun      bool
	IgnoreLock  bool
	Trigger     string
}

// Summary is the sync cycle's returned result (§4.5 "Returned summary").
type Summary struct {
	IndexedSessions   int      `json:"indexed_sessions"`
	ExtractedSessions int      `json:"extracted_sessions"`
	SkippedSessions   int      `json:"skipped_sessions"`
	FailedSessions    int      `json:"failed_sessions"`
	LearningsNew      int      `json:"learnings_new"`
	LearningsUpdated  int      `json:"learnings_updated"`
	RunIDs            []string `json:"run_ids"`
	ExitCode          int      `json:"-"`
}

// Pipeline wires the catalog, adapter registry, data-root layout, and
// writer lock together to run one sync cycle.
type Pipeline struct {
	Catalog    *catalog.Catalog
	Registry   adapters.Registry
	Layout     *pathlayout.Layout
	Queue      *config.QueueConfig
	LockConfig config.LockConfig
	Invoker    AgentInvoker

	// Now, if set, overrides time.Now (tests only).
	Now func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// Run executes one full sync cycle per §4.5's nine steps.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	now := p.now()
	summary := &Summary{}

	trigger := opts.Trigger
	if trigger == "" {
		trigger = "manual"
	}

	start, end, err := ResolveWindow(opts.Window, opts.Since, opts.Until, p.Catalog.MinStartTime, now)
	if err != nil {
		return nil, err
	}

	// Step 2: acquire the writer lock unless dry_run or ignore_lock.
	var heldLock *lock.Lock
	if !opts.DryRun && !opts.IgnoreLock {
		l := lock.New(p.Layout.WriterLock(), p.LockConfig.StaleSeconds)
		if err := l.Acquire("sync", "lerim sync"); err != nil {
			var busy *errs.LockBusy
			if errors.As(err, &busy) {
				p.recordServiceRun(trigger, now, start, end, summary, catalog.RunLockBusy, true)
				summary.ExitCode = 4
				return summary, nil
			}
			return nil, fmt.Errorf("syncpipeline: acquire lock: %w", err)
		}
		heldLock = l
		defer func() { _ = heldLock.Release() }()
	}

	maxAttempts := 3
	if p.Queue != nil && p.Queue.MaxAttempts > 0 {
		maxAttempts = p.Queue.MaxAttempts
	}

	// Steps 3-4: enqueue either the single targeted run, or everything
	// adapter discovery turns up inside the window.
	var targetRunIDs []string
	if opts.RunID != "" {
		doc, err := p.Catalog.Fetch(opts.RunID)
		if err != nil {
			return nil, fmt.Errorf("syncpipeline: fetch %s: %w", opts.RunID, err)
		}
		if doc != nil {
			if err := p.Catalog.EnqueueJob(opts.RunID, "extract", true, maxAttempts, trigger); err != nil {
				return nil, fmt.Errorf("syncpipeline: enqueue %s: %w", opts.RunID, err)
			}
			targetRunIDs = []string{opts.RunID}
		}
	} else {
		records, err := p.Catalog.DiscoverNew(p.Registry, opts.AgentNames, start, end)
		if err != nil {
			return nil, fmt.Errorf("syncpipeline: discover: %w", err)
		}
		summary.IndexedSessions = len(records)
		for _, rec := range records {
			force := rec.Changed || opts.Force
			if err := p.Catalog.EnqueueJob(rec.RunID, "extract", force, maxAttempts, trigger); err != nil {
				continue
			}
			targetRunIDs = append(targetRunIDs, rec.RunID)
		}
	}
	summary.RunIDs = targetRunIDs

	// Step 5: no_extract stops here.
	if opts.NoExtract {
		summary.SkippedSessions = len(targetRunIDs)
		summary.ExitCode = 0
		p.recordServiceRun(trigger, now, start, end, summary, catalog.RunCompleted, opts.DryRun)
		return summary, nil
	}

	// Step 6: claim and process.
	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 10
	}
	claimTimeout := 300
	if p.Queue != nil && p.Queue.ClaimTimeout > 0 {
		claimTimeout = int(p.Queue.ClaimTimeout.Seconds())
	}
	heartbeatInterval := 15 * time.Second
	if p.Queue != nil && p.Queue.HeartbeatInterval > 0 {
		heartbeatInterval = p.Queue.HeartbeatInterval
	}

	if !opts.DryRun {
		jobs, err := p.Catalog.ClaimJobs(maxSessions, targetRunIDs, "extract", claimTimeout)
		if err != nil {
			return nil, fmt.Errorf("syncpipeline: claim jobs: %w", err)
		}

		for _, job := range jobs {
			p.processJob(ctx, job, now, heartbeatInterval, summary)
		}
	}

	// Step 8: exit code.
	switch {
	case summary.FailedSessions > 0 && summary.ExtractedSessions > 0:
		summary.ExitCode = 3
	case summary.FailedSessions > 0 && summary.ExtractedSessions == 0 && summary.IndexedSessions == 0:
		summary.ExitCode = 1
	default:
		summary.ExitCode = 0
	}

	// Step 9: service-run record.
	status := catalog.RunCompleted
	if summary.ExitCode == 1 {
		status = catalog.RunFailed
	} else if summary.ExitCode == 3 {
		status = catalog.RunPartial
	}
	p.recordServiceRun(trigger, now, start, end, summary, status, opts.DryRun)

	return summary, nil
}

// processJob runs one claimed job's heartbeat-backed agent invocation and
// folds its outcome into summary, mirroring the teacher's
// pollAndProcess's start-heartbeat/execute/stop-heartbeat/terminal-status
// sequence.
func (p *Pipeline) processJob(ctx context.Context, job catalog.QueueJob, now time.Time, heartbeatInterval time.Duration, summary *Summary) {
	runFolder := p.Layout.RunFolder("sync", now.Format("20060102-150405"), randomHex())
	if err := os.MkdirAll(runFolder, 0o755); err != nil {
		_ = p.Catalog.Fail(job.RunID, "extract", err.Error())
		summary.FailedSessions++
		return
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	heartbeatDone := make(chan struct{})
	go p.runHeartbeat(heartbeatCtx, job, heartbeatInterval, heartbeatDone)

	invokeErr := p.Invoker(ctx, job, runFolder)
	cancelHeartbeat()
	<-heartbeatDone

	if invokeErr == nil {
		if contract, verr := p.validateSyncArtifacts(runFolder); verr != nil {
			invokeErr = verr
		} else {
			summary.LearningsNew += contract.Counts.Add
			summary.LearningsUpdated += contract.Counts.Update
		}
	}

	if invokeErr != nil {
		_ = p.Catalog.Fail(job.RunID, "extract", invokeErr.Error())
		summary.FailedSessions++
		return
	}

	_ = p.Catalog.Complete(job.RunID, "extract")
	summary.ExtractedSessions++
}

// runHeartbeat ticks catalog.Heartbeat every interval until ctx is
// cancelled, then signals done. Mirrors the teacher's
// Worker.runHeartbeat goroutine shape.
func (p *Pipeline) runHeartbeat(ctx context.Context, job catalog.QueueJob, interval time.Duration, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Catalog.Heartbeat(job.RunID, "extract")
		}
	}
}

type extractArtifact struct {
	Candidates []json.RawMessage `json:"candidates"`
}

type summaryArtifact struct {
	SummaryPath string `json:"summary_path"`
}

// validateSyncArtifacts checks presence of all four required sync
// artifacts (§4.8 "Contract validation: Sync"), the candidate-count tie
// between extract.json and memory_actions.json's counts, and that
// summary.json's summary_path lands inside the memory root.
func (p *Pipeline) validateSyncArtifacts(runFolder string) (*runtimeagent.SyncResultContract, error) {
	extractPath := filepath.Join(runFolder, "extract.json")
	extractData, err := os.ReadFile(extractPath)
	if err != nil {
		return nil, &errs.ArtifactMissing{Kind: "extract.json", Path: extractPath}
	}
	var extract extractArtifact
	if err := json.Unmarshal(extractData, &extract); err != nil {
		return nil, &errs.ArtifactInvalid{Kind: "extract.json", Reason: err.Error()}
	}

	summaryPath := filepath.Join(runFolder, "summary.json")
	summaryData, err := os.ReadFile(summaryPath)
	if err != nil {
		return nil, &errs.ArtifactMissing{Kind: "summary.json", Path: summaryPath}
	}
	var sum summaryArtifact
	if err := json.Unmarshal(summaryData, &sum); err != nil {
		return nil, &errs.ArtifactInvalid{Kind: "summary.json", Reason: err.Error()}
	}
	if sum.SummaryPath == "" {
		return nil, &errs.ArtifactInvalid{Kind: "summary.json", Reason: "summary_path is empty"}
	}
	if !pathIsInside(sum.SummaryPath, p.Layout.Memory) {
		return nil, &errs.ArtifactInvalid{Kind: "summary.json", Reason: "summary_path is outside memory root"}
	}

	subagentsLogPath := filepath.Join(runFolder, "subagents.log")
	if _, err := os.Stat(subagentsLogPath); err != nil {
		return nil, &errs.ArtifactMissing{Kind: "subagents.log", Path: subagentsLogPath}
	}

	contractPath := filepath.Join(runFolder, "memory_actions.json")
	return runtimeagent.ValidateSync(contractPath, p.Layout.Memory, runFolder, len(extract.Candidates))
}

func pathIsInside(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	absRoot = filepath.Clean(absRoot)
	return absPath == absRoot || len(absPath) > len(absRoot) && absPath[:len(absRoot)+1] == absRoot+string(filepath.Separator)
}

func (p *Pipeline) recordServiceRun(trigger string, startedAt time.Time, start, end *time.Time, summary *Summary, status string, dryRun bool) {
	details := map[string]any{
		"window": map[string]any{
			"since": formatWindowBound(start),
			"until": formatWindowBound(end),
		},
		"indexed_sessions":   summary.IndexedSessions,
		"extracted_sessions": summary.ExtractedSessions,
		"failed_sessions":    summary.FailedSessions,
		"run_ids":            summary.RunIDs,
		"dry_run":            dryRun,
	}
	detailsJSON, _ := json.Marshal(details)
	completedAt := p.now()
	_ = p.Catalog.RecordServiceRun(catalog.ServiceRun{
		JobType:     "sync",
		Status:      status,
		StartedAt:   startedAt,
		CompletedAt: &completedAt,
		Trigger:     trigger,
		DetailsJSON: string(detailsJSON),
	})
}

func formatWindowBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func randomHex() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}
