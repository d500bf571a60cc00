package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const utf8BOM = "\ufeff"

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool

	closer io.Closer
}

// StreamCSV reads the header row synchronously and streams the remaining
// rows. Fields are trimmed, a leading byte-order mark is dropped, and blank
// rows are skipped.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (*Table, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	trimFields(header)

	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)
		if opts.closer != nil {
			defer opts.closer.Close()
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			trimFields(record)
			if blank(record) {
				continue
			}
			line, _ := reader.FieldPos(0)

			select {
			case rowCh <- Row{Line: line, Fields: record}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return &Table{Header: header, Rows: rowCh, Errs: errCh}, nil
}

func trimFields(record []string) {
	for i, field := range record {
		record[i] = strings.TrimSpace(field)
	}
}
