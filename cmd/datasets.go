package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/schoolsite/internal/model"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List stored datasets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListDatasets(ctx)
		if err != nil {
			return eris.Wrap(err, "datasets")
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No datasets found.")
			return nil
		}
		formatDatasets(os.Stdout, list)
		return nil
	},
}

func formatDatasets(w io.Writer, list []model.Dataset) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tROWS\tREJECTED\tCREATED\tSOURCE\n")
	for _, ds := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			ds.ID, ds.Name, ds.Rows, ds.Rejected,
			ds.CreatedAt.Format("2006-01-02 15:04"), ds.Source,
		)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}
