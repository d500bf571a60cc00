package fetcher

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // title rows above the header
}

// StreamXLSX opens a workbook, reads the header row of the selected sheet, and
// streams the rows below it.
func StreamXLSX(ctx context.Context, path string, opts XLSXOptions) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	headerAt := -1
	for i := opts.SkipRows; i < len(sheet.Rows); i++ {
		if !blank(rowToStrings(sheet.Rows[i])) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, eris.Wrapf(ErrEmptyTable, "xlsx: sheet %q", sheet.Name)
	}
	header := rowToStrings(sheet.Rows[headerAt])

	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		for i := headerAt + 1; i < len(sheet.Rows); i++ {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}

			cells := rowToStrings(sheet.Rows[i])
			if blank(cells) {
				continue
			}

			select {
			case rowCh <- Row{Line: i + 1, Fields: cells}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return &Table{Header: header, Rows: rowCh, Errs: errCh}, nil
}

// SheetNames lists the sheets of a workbook in order.
func SheetNames(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	names := make([]string, 0, len(f.Sheets))
	for _, s := range f.Sheets {
		names = append(names, s.Name)
	}
	return names, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}
