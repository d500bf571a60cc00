package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/schoolsite/internal/ingest"
	"github.com/sells-group/schoolsite/internal/model"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Normalize a school dataset and store it",
	Long: "Reads a CSV, TSV, or XLSX file through the column alias table, validates every row, " +
		"and stores the accepted entities as a dataset that analysis commands can reference by ID.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		name, _ := cmd.Flags().GetString("name")
		typ, _ := cmd.Flags().GetString("type")
		sheet, _ := cmd.Flags().GetString("sheet")
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if sheet == "" {
			sheet = cfg.Ingest.Sheet
		}

		res, err := ingest.LoadFile(ctx, path, ingest.Options{
			Type:           model.ParseSchoolType(typ),
			FunctionalOnly: cfg.Ingest.FunctionalOnly,
			Sheet:          sheet,
		})
		if err != nil {
			return eris.Wrap(err, "import")
		}
		logRejects(path, res.Rejected)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ds, err := st.CreateDataset(ctx, model.Dataset{
			Name:     name,
			Source:   path,
			Rejected: len(res.Rejected),
		}, res.Entities)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.String("dataset", ds.ID),
			zap.Int("entities", ds.Rows),
			zap.Int("rejected", ds.Rejected),
			zap.Int("skipped", res.Skipped),
		)
		fmt.Fprintln(os.Stdout, ds.ID)
		return nil
	},
}

func init() {
	importCmd.Flags().String("name", "", "dataset name (defaults to the file name)")
	importCmd.Flags().String("type", string(model.SchoolTypeGovernment), "school type for rows without one (Government, BEF)")
	importCmd.Flags().String("sheet", "", "XLSX sheet name (overrides ingest.sheet)")
	rootCmd.AddCommand(importCmd)
}
