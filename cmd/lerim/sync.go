package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lerim-dev/lerim/internal/errs"
	"github.com/lerim-dev/lerim/internal/syncpipeline"
)

func syncCmd() *cobra.Command {
	var (
		runID       string
		agents      string
		window      string
		since       string
		until       string
		maxSessions int
		noExtract   bool
		force       bool
		dryRun      bool
		ignoreLock  bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Discover and index new sessions, extracting candidate memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			var agentNames []string
			if agents != "" {
				agentNames = strings.Split(agents, ",")
			}

			summary, err := rt.SyncPipeline().Run(cmd.Context(), syncpipeline.Options{
				RunID:       runID,
				AgentNames:  agentNames,
				Window:      window,
				Since:       since,
				Until:       until,
				MaxSessions: maxSessions,
				NoExtract:   noExtract,
				Force:       force,
				DryRun:      dryRun,
				IgnoreLock:  ignoreLock,
				Trigger:     "cli",
			})
			if err != nil {
				if errors.Is(err, errs.ErrLockBusy) {
					return lockBusyf("sync: %w", err)
				}
				return fatalf("sync: %w", err)
			}
			if summary.ExitCode == ExitLockBusy {
				return lockBusyf("sync: %w", errs.ErrLockBusy)
			}

			if jsonOutput {
				enc, _ := json.MarshalIndent(summary, "", "  ")
				fmt.Println(string(enc))
			} else {
				fmt.Printf("indexed=%d extracted=%d skipped=%d failed=%d learnings_new=%d learnings_updated=%d\n",
					summary.IndexedSessions, summary.ExtractedSessions, summary.SkippedSessions,
					summary.FailedSessions, summary.LearningsNew, summary.LearningsUpdated)
			}

			switch summary.ExitCode {
			case ExitPartial:
				return partialf("sync: %d session(s) failed", summary.FailedSessions)
			case ExitFatal:
				return fatalf("sync: all %d session(s) failed", summary.FailedSessions)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "target a single already-discovered run id")
	cmd.Flags().StringVar(&agents, "agent", "", "comma-separated platform names to restrict discovery to")
	cmd.Flags().StringVar(&window, "window", "", "window duration (<n>{s|m|h|d}) or 'all'")
	cmd.Flags().StringVar(&since, "since", "", "RFC3339 lower bound, mutually exclusive with --window")
	cmd.Flags().StringVar(&until, "until", "", "RFC3339 upper bound, mutually exclusive with --window")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "cap the number of sessions processed this cycle")
	cmd.Flags().BoolVar(&noExtract, "no-extract", false, "index sessions without running extraction")
	cmd.Flags().BoolVar(&force, "force", false, "re-process sessions even if their content hash is unchanged")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run without writing memory files")
	cmd.Flags().BoolVar(&ignoreLock, "ignore-lock", false, "bypass the writer lock (use with care)")
	return cmd
}

