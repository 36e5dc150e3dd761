package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"car_scrooper/models"
	"car_scrooper/storage"
)

func init() {
	triggerCmd.Flags().StringVar(&triggerSite, "site", "", "site id for scrape_site")
	rootCmd.AddCommand(triggerCmd)
}

var triggerSite string

var triggerCmd = &cobra.Command{
	Use:       "trigger {scrape_now|scrape_site|pause|resume}",
	Short:     "Queue a command for a running daemon.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(models.CmdScrapeNow), string(models.CmdScrapeSite), string(models.CmdPause), string(models.CmdResume)},
	RunE: func(cmd *cobra.Command, args []string) error {
		command := models.CommandType(args[0])

		var params *models.CommandParams
		if command == models.CmdScrapeSite {
			if _, err := sitesFor(cfg, triggerSite); err != nil || triggerSite == "" {
				return fmt.Errorf("scrape_site needs a configured --site (configured: %v)", cfg.SiteIDs())
			}
			params = &models.CommandParams{Site: triggerSite}
		}

		store, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer store.Close()

		id, err := store.EnqueueCommand(command, params)
		if err != nil {
			return err
		}
		fmt.Printf("Queued %s as command %d\n", command, id)
		return nil
	},
}
