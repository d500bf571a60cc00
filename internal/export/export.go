// Package export writes verdicts and summaries as JSON, CSV, or XLSX.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schoolsite/internal/model"
	"github.com/sells-group/schoolsite/internal/report"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", eris.Errorf("export: unsupported format %q", s)
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// verdictColumns defines the ordered CSV and XLSX columns.
var verdictColumns = []string{
	"candidate_id",
	"candidate_name",
	"policy",
	"level",
	"district",
	"tehsil",
	"uc",
	"latitude",
	"longitude",
	"tag",
	"risk",
	"score",
	"total_found",
	"nearest_name",
	"nearest_level",
	"nearest_km",
	"reason",
}

// verdictRow flattens a verdict into verdictColumns order.
func verdictRow(v model.Verdict) []string {
	var lat, lng string
	if v.Location.Valid() {
		lat = strconv.FormatFloat(v.Location.Lat(), 'f', 6, 64)
		lng = strconv.FormatFloat(v.Location.Lng(), 'f', 6, 64)
	}
	var nearestName, nearestLevel, nearestKM string
	if len(v.Matches) > 0 {
		n := v.Matches[0]
		nearestName = n.Name
		nearestLevel = string(n.Level)
		nearestKM = strconv.FormatFloat(n.DistanceKM, 'f', 2, 64)
	}
	score := ""
	if v.Policy == model.PolicySite {
		score = strconv.Itoa(v.Score)
	}
	return []string{
		v.CandidateID,
		v.CandidateName,
		string(v.Policy),
		string(v.Level),
		v.Region.District,
		v.Region.Tehsil,
		v.Region.UC,
		lat,
		lng,
		string(v.Tag),
		string(v.Risk),
		score,
		strconv.Itoa(v.TotalFound),
		nearestName,
		nearestLevel,
		nearestKM,
		v.Reason,
	}
}

// WriteVerdicts encodes verdicts to w. The summary is included in JSON and
// XLSX output when non-nil.
func WriteVerdicts(w io.Writer, format Format, verdicts []model.Verdict, summary *report.Summary) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, struct {
			Verdicts []model.Verdict `json:"verdicts"`
			Summary  *report.Summary `json:"summary,omitempty"`
		}{verdicts, summary})
	case FormatCSV:
		return writeVerdictsCSV(w, verdicts)
	case FormatXLSX:
		return writeXLSX(w, verdicts, summary)
	}
	return eris.Errorf("export: unsupported format %q", format)
}

// WriteVerdictsFile creates path and writes verdicts in the format implied by
// its extension.
func WriteVerdictsFile(path string, verdicts []model.Verdict, summary *report.Summary) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	if err := WriteVerdicts(f, format, verdicts, summary); err != nil {
		f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "export: close file")
}

// WriteSummary encodes a summary as indented JSON.
func WriteSummary(w io.Writer, s report.Summary) error {
	return writeJSON(w, s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

func writeVerdictsCSV(w io.Writer, verdicts []model.Verdict) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(verdictColumns); err != nil {
		return eris.Wrap(err, "export: write CSV header")
	}
	for _, v := range verdicts {
		if err := cw.Write(verdictRow(v)); err != nil {
			return eris.Wrap(err, "export: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush CSV")
}
