package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"car_scrooper/logging"
	"car_scrooper/scheduler"
)

func init() {
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Crawl on the configured schedule and serve queued commands until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		sched := scheduler.New(&cfg.Scheduler, a.orch, a.store)
		if err := sched.Start(ctx); err != nil {
			return err
		}

		logging.Infof("Daemon running. Press Ctrl+C to stop.")
		<-ctx.Done()

		logging.Infof("Shutting down...")
		sched.Stop()
		logging.Infof("Goodbye!")
		return nil
	},
}

