package db

import (
	"context"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Merge describes an upsert of a batch into Table keyed on Keys. On conflict
// every non-key column is overwritten unless Update narrows the set; when no
// column is left to update, conflicting rows are kept as they are.
type Merge struct {
	Table   string
	Columns []string
	Keys    []string
	Update  []string
}

func (m Merge) validate() error {
	switch {
	case m.Table == "":
		return eris.New("db: merge: no table")
	case len(m.Columns) == 0:
		return eris.Errorf("db: merge %s: no columns", m.Table)
	case len(m.Keys) == 0:
		return eris.Errorf("db: merge %s: no conflict keys", m.Table)
	}
	for _, k := range m.Keys {
		if !slices.Contains(m.Columns, k) {
			return eris.Errorf("db: merge %s: key %q is not a copied column", m.Table, k)
		}
	}
	return nil
}

// staging is the per-transaction table a batch lands in before the merge.
func (m Merge) staging() string {
	return "stage_" + strings.ReplaceAll(m.Table, ".", "_")
}

func (m Merge) updated() []string {
	if m.Update != nil {
		return m.Update
	}
	var cols []string
	for _, c := range m.Columns {
		if !slices.Contains(m.Keys, c) {
			cols = append(cols, c)
		}
	}
	return cols
}

func (m Merge) stageSQL() string {
	return "CREATE TEMP TABLE " + pgx.Identifier{m.staging()}.Sanitize() +
		" (LIKE " + tableIdent(m.Table).Sanitize() + " INCLUDING DEFAULTS) ON COMMIT DROP"
}

func (m Merge) mergeSQL() string {
	var b strings.Builder
	cols := quoted(m.Columns)
	b.WriteString("INSERT INTO " + tableIdent(m.Table).Sanitize() + " (" + cols + ")")
	b.WriteString(" SELECT " + cols + " FROM " + pgx.Identifier{m.staging()}.Sanitize())
	b.WriteString(" ON CONFLICT (" + quoted(m.Keys) + ")")

	upd := m.updated()
	if len(upd) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String()
	}
	sets := make([]string, len(upd))
	for i, c := range upd {
		id := pgx.Identifier{c}.Sanitize()
		sets[i] = id + " = EXCLUDED." + id
	}
	b.WriteString(" DO UPDATE SET " + strings.Join(sets, ", "))
	return b.String()
}

// MergeInto stages items in a temporary table with COPY and folds them into
// m.Table inside tx. It returns the number of rows inserted or updated.
func MergeInto[T any](ctx context.Context, tx pgx.Tx, m Merge, items []T, enc Encoder[T]) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if err := m.validate(); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, m.stageSQL()); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: stage", m.Table)
	}
	if _, err := Copy(ctx, tx, m.staging(), m.Columns, items, enc); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s", m.Table)
	}
	tag, err := tx.Exec(ctx, m.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: apply", m.Table)
	}
	return tag.RowsAffected(), nil
}
