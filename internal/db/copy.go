package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Encoder turns the i-th item of a batch into one COPY row.
type Encoder[T any] func(i int, item T) ([]any, error)

// Copy streams items into table over COPY, encoding each lazily. table may be
// schema-qualified ("schoolsite.verdicts").
func Copy[T any](ctx context.Context, dst Copier, table string, columns []string, items []T, enc Encoder[T]) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	src := pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
		return enc(i, items[i])
	})
	n, err := dst.CopyFrom(ctx, tableIdent(table), columns, src)
	if err != nil {
		return 0, eris.Wrapf(err, "db: copy %d rows into %s", len(items), table)
	}
	return n, nil
}

func tableIdent(table string) pgx.Identifier {
	return pgx.Identifier(strings.SplitN(table, ".", 2))
}

func quoted(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(parts, ", ")
}
