// Package fetcher reads tabular school datasets from CSV and XLSX files.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrEmptyTable is returned when a file has no header row.
var ErrEmptyTable = eris.New("fetcher: table has no header row")

// ErrUnsupportedFormat is returned by Open for unknown file extensions.
var ErrUnsupportedFormat = eris.New("fetcher: unsupported file format")

// Row is one data row with its 1-based line (CSV) or row number (XLSX) in
// the source file.
type Row struct {
	Line   int
	Fields []string
}

// Table is a header plus a stream of data rows. Rows and Errs are closed when
// the source is exhausted; Errs carries at most one error.
type Table struct {
	Header []string
	Rows   <-chan Row
	Errs   <-chan error
}

// Collect drains the table.
func (t *Table) Collect() ([]Row, error) {
	var rows []Row
	for r := range t.Rows {
		rows = append(rows, r)
	}
	for err := range t.Errs {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

// Options selects how Open parses a file.
type Options struct {
	// Sheet names the XLSX sheet; empty selects the first sheet.
	Sheet string
	// Delimiter overrides the CSV delimiter. Files ending in .tsv default to tab.
	Delimiter rune
}

// Open streams the table in path, choosing the parser by extension.
func Open(ctx context.Context, path string, opts Options) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".tsv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", path)
		}
		delim := opts.Delimiter
		if delim == 0 && strings.EqualFold(filepath.Ext(path), ".tsv") {
			delim = '\t'
		}
		t, err := StreamCSV(ctx, f, CSVOptions{Delimiter: delim, LazyQuotes: true, closer: f})
		if err != nil {
			f.Close()
			return nil, err
		}
		return t, nil
	case ".xlsx":
		return StreamXLSX(ctx, path, XLSXOptions{SheetName: opts.Sheet})
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "fetcher: %s", path)
	}
}

// blank reports whether every field is empty.
func blank(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}
