package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/schoolsite/internal/model"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Report government coverage around candidate schools",
	Long:  "Measures each candidate, typically a BEF school, against the government schools within the search radius.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPolicy(cmd, model.PolicyCompare)
	},
}

func init() {
	addAnalysisFlags(compareCmd)
	rootCmd.AddCommand(compareCmd)
}
