package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/schoolsite/internal/geo"
	"github.com/sells-group/schoolsite/internal/model"
)

var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "Check whether candidates fall inside district boundaries",
	Long: "Tests each candidate against district polygons loaded from GeoJSON, a shapefile, " +
		"or a zipped shapefile and reports the containing district.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPolicy(cmd, model.PolicyRegion)
	},
}

func init() {
	addAnalysisFlags(regionCmd)
	regionCmd.Flags().String("boundaries", "", "district boundaries (GeoJSON, SHP, or ZIP) (required)")
	regionCmd.Flags().String("boundary-field", geo.DefaultNameField, "attribute holding the district name")
	_ = regionCmd.MarkFlagRequired("boundaries")
	rootCmd.AddCommand(regionCmd)
}
