package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	var (
		once        bool
		pollSeconds int
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the sync/maintain scheduler loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			scheduler := rt.Scheduler("daemon")
			_ = pollSeconds // reserved: a future poll-driven claim loop would read this, none exists yet

			if once {
				scheduler.RunOnce(cmd.Context())
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler.Start(ctx)
			fmt.Println("daemon started, press ctrl-c to stop")
			<-ctx.Done()
			scheduler.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single sync cycle then a single maintain cycle and exit")
	cmd.Flags().IntVar(&pollSeconds, "poll-seconds", 30, "reserved for a future polling cadence override")
	return cmd
}
