package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"car_scrooper/config"
	"car_scrooper/logging"
	"car_scrooper/models"
)

var (
	cfg       *config.Config
	logWriter *logging.RotatingWriter
)

var rootCmd = &cobra.Command{
	Use:   "car_scrooper",
	Short: "car_scrooper crawls dealer car offers, detects sold cars and sums prices per model.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logging.SetLevel(models.ParseLogLevel(cfg.Log.Level))
		logWriter, err = logging.Setup(cfg.Log.File, cfg.Log.MaxBytes)
		if err != nil {
			log.Printf("Warning: could not set up file logging: %v", err)
		}
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	if err := execute(nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// execute runs the root command with args, or the process arguments when
// args is nil, and closes the log file whether the command failed or not.
func execute(args []string) error {
	if args != nil {
		rootCmd.SetArgs(args)
	}
	err := rootCmd.Execute()
	if logWriter != nil {
		logWriter.Close()
	}
	return err
}
