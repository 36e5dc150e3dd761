package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"car_scrooper/report"
	"car_scrooper/storage"
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	historyCmd.Flags().BoolVar(&historyLogs, "logs", false, "also print the log lines of the latest run")
	rootCmd.AddCommand(historyCmd)
}

var (
	historyLimit int
	historyLogs  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent crawl runs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer store.Close()

		runs, err := store.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs yet.")
			return nil
		}
		report.RunsTable(os.Stdout, runs)

		for _, id := range cfg.SiteIDs() {
			stats, err := store.GetSiteStats(id)
			if err != nil {
				return err
			}
			if stats != nil {
				fmt.Printf("%s: %d runs, %.0f%% completed, avg %s, %d offers last time\n",
					id, stats.TotalRuns, stats.SuccessRate*100, stats.AvgRunDuration, stats.LastOffersFound)
			}
		}

		if !historyLogs {
			return nil
		}
		logs, err := store.RunLogs(runs[0].ID)
		if err != nil {
			return err
		}
		for _, l := range logs {
			fmt.Printf("%s [%s] %s\n", l.Timestamp.Local().Format("15:04:05"), l.Level, l.Message)
		}
		return nil
	},
}
