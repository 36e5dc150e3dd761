package cmd

import (
	"github.com/spf13/cobra"

	"car_scrooper/logging"
)

func init() {
	runCmd.Flags().StringVar(&runSite, "site", "", "crawl only this site id")
	rootCmd.AddCommand(runCmd)
}

var runSite string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl once, write the reports and exit.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, err := sitesFor(cfg, runSite)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if runSite == "" {
			return a.orch.RunAll(cmd.Context())
		}
		for _, id := range sites {
			if _, err := a.orch.RunSite(cmd.Context(), id); err != nil {
				return err
			}
		}
		logging.Infof("Crawl complete")
		return nil
	},
}
