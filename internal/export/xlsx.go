package export

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/schoolsite/internal/model"
	"github.com/sells-group/schoolsite/internal/report"
)

var regionColumns = []string{"region", "candidates", "reference_schools", "feasible", "recommended"}

// writeXLSX writes a Verdicts sheet and, with a summary, a Regions sheet.
func writeXLSX(w io.Writer, verdicts []model.Verdict, summary *report.Summary) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Verdicts")
	if err != nil {
		return eris.Wrap(err, "export: add verdicts sheet")
	}
	addRow(sheet, verdictColumns)
	for _, v := range verdicts {
		row := verdictRow(v)
		r := sheet.AddRow()
		for i, val := range row {
			c := r.AddCell()
			switch verdictColumns[i] {
			case "latitude", "longitude", "nearest_km", "total_found", "score":
				if n, err := strconv.ParseFloat(val, 64); err == nil {
					c.SetFloat(n)
					continue
				}
			}
			c.SetString(val)
		}
	}

	if summary != nil {
		regions, err := f.AddSheet("Regions")
		if err != nil {
			return eris.Wrap(err, "export: add regions sheet")
		}
		addRow(regions, regionColumns)
		for _, name := range summary.RegionNames() {
			rs := summary.Regions[name]
			r := regions.AddRow()
			r.AddCell().SetString(name)
			r.AddCell().SetInt(rs.Candidates)
			r.AddCell().SetInt(rs.ReferenceEntities)
			r.AddCell().SetInt(rs.Feasible())
			r.AddCell().SetInt(rs.Recommended())
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	r := sheet.AddRow()
	for _, v := range values {
		r.AddCell().SetString(v)
	}
}
