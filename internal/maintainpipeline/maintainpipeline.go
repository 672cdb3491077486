// Package maintainpipeline implements the offline maintenance cycle
// (§4.6): acquire the writer lock, invoke the lead runtime agent in
// maintain mode with current access statistics and decay policy, and
// validate the resulting maintain_actions.json. Grounded on
// syncpipeline's lock/service-run shape, narrowed to maintain's
// single-invocation (no per-job claim loop) algorithm.
package maintainpipeline

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

	"github.com/lerim-dev/lerim/internal/access"
	"github.com/lerim-dev/lerim/internal/catalog"
	"github.com/lerim-dev/lerim/internal/config"
	"github.com/lerim-dev/lerim/internal/errs"
	"github.com/lerim-dev/lerim/internal/lock"
	"github.com/lerim-dev/lerim/internal/pathlayout"
	"github.com/lerim-dev/lerim/internal/runtimeagent"
	"github.com/lerim-dev/lerim/internal/runtimeagent/prompt"
)

// AgentInvoker drives one lead-agent maintain-mode invocation, writing
// maintain_actions.json (and its companion logs) into runFolder.
type AgentInvoker func(ctx context.Context, runFolder string, accessStats []access.Record) error

// Options carries one maintain invocation's inputs.
type Options struct {
	DryRun  bool
	Trigger string
}

// Result is the maintain cycle's returned summary (§4.6 "Returns").
type Result struct {
	MemoryRoot    string         `json:"memory_root"`
	WorkspaceRoot string         `json:"workspace_root"`
	RunFolder     string         `json:"run_folder"`
	Artifacts     []string       `json:"artifacts"`
	Counts        map[string]int `json:"counts"`
	ExitCode      int            `json:"-"`
}

// Pipeline wires the catalog, access tracker, data-root layout, decay
// policy, and writer lock together to run one maintain cycle.
type Pipeline struct {
	Catalog    *catalog.Catalog
	Tracker    *access.Tracker
	Layout     *pathlayout.Layout
	Decay      config.DecayConfig
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

// Run executes one maintain cycle.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	now := p.now()
	trigger := opts.Trigger
	if trigger == "" {
		trigger = "manual"
	}

	result := &Result{
		MemoryRoot:    p.Layout.Memory,
		WorkspaceRoot: p.Layout.Workspace,
	}

	if opts.DryRun {
		p.recordServiceRun(trigger, now, result, catalog.RunCompleted, true)
		result.ExitCode = 0
		return result, nil
	}

	l := lock.New(p.Layout.WriterLock(), p.LockConfig.StaleSeconds)
	if err := l.Acquire("maintain", "lerim maintain"); err != nil {
		var busy *errs.LockBusy
		if errors.As(err, &busy) {
			p.recordServiceRun(trigger, now, result, catalog.RunLockBusy, false)
			result.ExitCode = 4
			return result, nil
		}
		return nil, fmt.Errorf("maintainpipeline: acquire lock: %w", err)
	}
	defer func() { _ = l.Release() }()

	runFolder := p.Layout.RunFolder("maintain", now.Format("20060102-150405"), randomHex())
	if err := os.MkdirAll(runFolder, 0o755); err != nil {
		return nil, fmt.Errorf("maintainpipeline: run folder: %w", err)
	}
	result.RunFolder = runFolder

	stats, err := p.Tracker.ListByRoot(p.Layout.Memory)
	if err != nil {
		return nil, fmt.Errorf("maintainpipeline: access stats: %w", err)
	}

	invokeErr := p.Invoker(ctx, runFolder, stats)
	if invokeErr != nil {
		p.recordServiceRun(trigger, now, result, catalog.RunFailed, false)
		result.ExitCode = 1
		return result, invokeErr
	}

	contract, err := runtimeagent.ValidateMaintain(
		filepath.Join(runFolder, "maintain_actions.json"), p.Layout.Memory, runFolder)
	if err != nil {
		p.recordServiceRun(trigger, now, result, catalog.RunFailed, false)
		result.ExitCode = 1
		return result, err
	}

	result.Artifacts = []string{filepath.Join(runFolder, "maintain_actions.json")}
	result.Counts = map[string]int{
		"merged":       contract.Counts.Merged,
		"archived":     contract.Counts.Archived,
		"consolidated": contract.Counts.Consolidated,
		"decayed":      contract.Counts.Decayed,
		"unchanged":    contract.Counts.Unchanged,
	}
	result.ExitCode = 0
	p.recordServiceRun(trigger, now, result, catalog.RunCompleted, false)
	return result, nil
}

// BuildAccessStats converts tracker records into the prompt package's
// AccessStat shape for BuildMaintainPrompt.
func BuildAccessStats(records []access.Record) []prompt.AccessStat {
	stats := make([]prompt.AccessStat, 0, len(records))
	for _, r := range records {
		stats = append(stats, prompt.AccessStat{
			MemoryID:     r.MemoryID,
			LastAccessed: r.LastAccessed.UTC().Format(time.RFC3339),
			AccessCount:  r.AccessCount,
		})
	}
	return stats
}

// DecayPolicyParams converts config.DecayConfig into the prompt package's
// policy shape.
func DecayPolicyParams(cfg config.DecayConfig) prompt.DecayPolicyParams {
	return prompt.DecayPolicyParams{
		DecayDays:             int(cfg.DecayDays),
		ArchiveThreshold:      0.3,
		MinConfidenceFloor:    cfg.MinFloor,
		RecentAccessGraceDays: int(cfg.GraceDays),
	}
}

func (p *Pipeline) recordServiceRun(trigger string, startedAt time.Time, result *Result, status string, dryRun bool) {
	details := map[string]any{
		"run_folder": result.RunFolder,
		"counts":     result.Counts,
		"dry_run":    dryRun,
	}
	detailsJSON, _ := json.Marshal(details)
	completedAt := p.now()
	_ = p.Catalog.RecordServiceRun(catalog.ServiceRun{
		JobType:     "maintain",
		Status:      status,
		StartedAt:   startedAt,
		CompletedAt: &completedAt,
		Trigger:     trigger,
		DetailsJSON: string(detailsJSON),
	})
}

func randomHex() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}
