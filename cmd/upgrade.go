package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/schoolsite/internal/model"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Recommend schools for upgrade to the next level",
	Long:  "Recommends moving a school up one level when no next-level school is within the search radius and it leads its same-level cluster by enrollment.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPolicy(cmd, model.PolicyUpgrade)
	},
}

func init() {
	addAnalysisFlags(upgradeCmd)
	rootCmd.AddCommand(upgradeCmd)
}
