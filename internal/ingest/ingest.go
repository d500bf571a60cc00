// Package ingest turns tabular rows into validated school entities. Column
// aliasing happens once per header; rows that fail validation are collected
// as RowErrors and the rest load.
package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/schoolsite/internal/fetcher"
	"github.com/sells-group/schoolsite/internal/geo"
	"github.com/sells-group/schoolsite/internal/model"
)

// Row validation failures.
var (
	ErrMissingCoordinate = eris.New("ingest: missing coordinate")
	ErrInvalidNumber     = eris.New("ingest: invalid number")
)

// RowError records why a source row was rejected.
type RowError struct {
	Line  int    `json:"line"`
	Field string `json:"field"`
	Value string `json:"value,omitempty"`
	Err   error  `json:"-"`
}

func (e *RowError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("line %d: %s %q: %v", e.Line, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Options controls how rows become entities.
type Options struct {
	// Type applies to rows without a type column or with an unrecognized value.
	Type model.SchoolType
	// FunctionalOnly drops rows whose status is not Functional.
	FunctionalOnly bool
	// Sheet selects the XLSX sheet for LoadFile.
	Sheet string
}

// Result is the outcome of loading one table.
type Result struct {
	Entities []model.Entity
	Rejected []*RowError
	// Skipped counts valid rows dropped by FunctionalOnly.
	Skipped int
}

// LoadFile opens path with the fetcher and loads it.
func LoadFile(ctx context.Context, path string, opts Options) (*Result, error) {
	tbl, err := fetcher.Open(ctx, path, fetcher.Options{Sheet: opts.Sheet})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open")
	}
	res, err := Load(ctx, tbl, opts)
	if err != nil {
		return res, eris.Wrapf(err, "ingest: load %s", path)
	}
	return res, nil
}

// Load converts every row of tbl. The returned error is a read failure of the
// table itself; row problems are reported in Result.Rejected.
func Load(ctx context.Context, tbl *fetcher.Table, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "ingest"))

	cols := ResolveHeader(tbl.Header)
	for _, f := range []string{FieldLatitude, FieldLongitude} {
		if !cols.Has(f) {
			log.Warn("coordinate column not found; every row will be rejected", zap.String("field", f))
		}
	}

	res := &Result{}
	for row := range tbl.Rows {
		e, rerr := cols.Entity(row, opts.Type)
		if rerr != nil {
			res.Rejected = append(res.Rejected, rerr)
			log.Debug("row rejected", zap.Int("line", rerr.Line), zap.String("field", rerr.Field), zap.Error(rerr.Err))
			continue
		}
		if opts.FunctionalOnly && !e.Functional() {
			res.Skipped++
			continue
		}
		res.Entities = append(res.Entities, e)
	}
	for err := range tbl.Errs {
		if err != nil {
			return res, err
		}
	}
	if err := ctx.Err(); err != nil {
		return res, eris.Wrap(err, "ingest: context cancelled")
	}

	log.Info("table loaded",
		zap.Int("entities", len(res.Entities)),
		zap.Int("rejected", len(res.Rejected)),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// Entity builds an entity from one row. Rows without a code get a synthesized
// SYN-<line> identifier.
func (c Columns) Entity(row fetcher.Row, defaultType model.SchoolType) (model.Entity, *RowError) {
	rec := row.Fields

	lat, rerr := c.coordinate(row, FieldLatitude)
	if rerr != nil {
		return model.Entity{}, rerr
	}
	lng, rerr := c.coordinate(row, FieldLongitude)
	if rerr != nil {
		return model.Entity{}, rerr
	}
	loc, err := geo.NewPoint(lat, lng)
	if err != nil {
		return model.Entity{}, &RowError{
			Line:  row.Line,
			Field: "location",
			Value: c.Get(rec, FieldLatitude) + "," + c.Get(rec, FieldLongitude),
			Err:   err,
		}
	}

	enrollment, rerr := c.enrollment(row)
	if rerr != nil {
		return model.Entity{}, rerr
	}

	id := c.Get(rec, FieldCode)
	if id == "" {
		id = fmt.Sprintf("SYN-%d", row.Line)
	}
	name := c.Get(rec, FieldName)
	if name == "" {
		name = id
	}

	level, _ := model.ParseLevel(c.Get(rec, FieldLevel))

	typ := model.ParseSchoolType(c.Get(rec, FieldType))
	if typ == "" {
		typ = defaultType
	}

	functional := model.StatusFunctional
	if c.Has(FieldFunctional) {
		functional = model.ParseFunctional(c.Get(rec, FieldFunctional))
	}

	return model.Entity{
		ID:       id,
		Name:     name,
		Level:    level,
		Type:     typ,
		Region:   model.NewRegion(c.Get(rec, FieldDistrict), c.Get(rec, FieldTehsil), c.Get(rec, FieldUC)),
		Location: loc,
		Attributes: model.Attributes{
			Enrollment: enrollment,
			Functional: functional,
			Gender:     model.NormalizeRegion(c.Get(rec, FieldGender)),
			Extra:      c.Extras(rec),
		},
	}, nil
}

func (c Columns) coordinate(row fetcher.Row, field string) (float64, *RowError) {
	raw := c.Get(row.Fields, field)
	if raw == "" {
		return 0, &RowError{Line: row.Line, Field: field, Err: ErrMissingCoordinate}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &RowError{Line: row.Line, Field: field, Value: raw, Err: eris.Wrap(ErrInvalidNumber, err.Error())}
	}
	return v, nil
}

// enrollment accepts "1,234" and "120.0". Blank means zero.
func (c Columns) enrollment(row fetcher.Row) (int, *RowError) {
	raw := strings.ReplaceAll(c.Get(row.Fields, FieldEnrollment), ",", "")
	if raw == "" || strings.EqualFold(raw, "nan") {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, &RowError{Line: row.Line, Field: FieldEnrollment, Value: raw, Err: ErrInvalidNumber}
	}
	return int(math.Round(v)), nil
}
