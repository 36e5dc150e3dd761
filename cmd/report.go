package cmd

import (
	"github.com/spf13/cobra"

	"car_scrooper/logging"
)

func init() {
	reportCmd.Flags().StringVar(&reportSite, "site", "", "re-render only this site id")
	rootCmd.AddCommand(reportCmd)
}

var reportSite string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Re-render sold and price reports from the saved snapshots without crawling.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, err := sitesFor(cfg, reportSite)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		for _, id := range sites {
			if err := a.orch.RenderReports(cmd.Context(), id); err != nil {
				return err
			}
			logging.Infof("Reports for %s rendered", id)
		}
		return nil
	},
}
