package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lerim-dev/lerim/internal/errs"
	"github.com/lerim-dev/lerim/internal/maintainpipeline"
)

func maintainCmd() *cobra.Command {
	var (
		force  bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run the offline maintenance cycle (decay, consolidation, archival)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.MaintainPipeline().Run(cmd.Context(), maintainpipeline.Options{
				DryRun:  dryRun,
				Trigger: "cli",
			})
			if err != nil {
				if errors.Is(err, errs.ErrLockBusy) {
					return lockBusyf("maintain: %w", err)
				}
				return fatalf("maintain: %w", err)
			}
			if result.ExitCode == ExitLockBusy {
				return lockBusyf("maintain: %w", errs.ErrLockBusy)
			}

			if jsonOutput {
				enc, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(enc))
			} else {
				fmt.Printf("run_folder=%s artifacts=%d\n", result.RunFolder, len(result.Artifacts))
				for kind, n := range result.Counts {
					fmt.Printf("  %s=%d\n", kind, n)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "reserved for API-shape parity; maintain has no force-lock concept")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run without writing memory files")
	return cmd
}
