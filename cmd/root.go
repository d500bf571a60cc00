package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/schoolsite/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "schoolsite",
	Short: "Proximity analysis for school-location planning",
	Long: "Loads school and candidate-site datasets, indexes them spatially, and classifies " +
		"candidates for feasibility, progression, upgrade, district membership, site suitability, " +
		"and government coverage. Verdicts export to JSON, CSV, or XLSX and can be stored as runs.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
