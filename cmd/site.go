package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/schoolsite/internal/model"
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Score proposed sites against nearby schools",
	Long:  "Scores each proposed coordinate from 2 to 10 by the schools around it, checking every level against its site spacing.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPolicy(cmd, model.PolicySite)
	},
}

func init() {
	addAnalysisFlags(siteCmd)
	rootCmd.AddCommand(siteCmd)
}
