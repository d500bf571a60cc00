package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/schoolsite/internal/model"
)

var feasibilityCmd = &cobra.Command{
	Use:   "feasibility",
	Short: "Check candidate schools against same-level spacing rules",
	Long:  "Flags candidates that sit closer than the minimum distance to an existing school of the same level and grades the rest by local density.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPolicy(cmd, model.PolicyFeasibility)
	},
}

func init() {
	addAnalysisFlags(feasibilityCmd)
	rootCmd.AddCommand(feasibilityCmd)
}
