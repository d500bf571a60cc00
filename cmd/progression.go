package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/schoolsite/internal/model"
)

var progressionCmd = &cobra.Command{
	Use:   "progression",
	Short: "Find the nearest next-level school for each candidate",
	Long:  "For each candidate, looks up schools of the next level in the hierarchy within the search radius. Highest-level candidates are reported as terminal.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPolicy(cmd, model.PolicyProgression)
	},
}

func init() {
	addAnalysisFlags(progressionCmd)
	rootCmd.AddCommand(progressionCmd)
}
