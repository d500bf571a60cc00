package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/schoolsite/internal/db"
	"github.com/sells-group/schoolsite/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_dataset":    `INSERT INTO datasets (id, name, source, row_count, rejected, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"get_dataset":       `SELECT id, name, source, row_count, rejected, created_at FROM datasets WHERE id = $1`,
	"insert_run":        `INSERT INTO runs (id, policy, reference_id, candidate_id, config, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"update_run_result": `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT ` + postgresRunColumns + ` FROM runs WHERE id = $1`,
}

const postgresRunColumns = `id, policy, reference_id, candidate_id, config, status, result, created_at, updated_at`

var (
	entityColumns  = []string{"dataset_id", "seq", "entity_id", "level", "district", "lat", "lng", "data"}
	verdictColumns = []string{"run_id", "seq", "candidate_id", "tag", "data"}

	entityMerge = db.Merge{Table: "entities", Columns: entityColumns, Keys: []string{"dataset_id", "seq"}}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	if minConns > maxConns {
		minConns = maxConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := retryVal(ctx, defaultConnectRetry(), func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	row_count  INTEGER NOT NULL DEFAULT 0,
	rejected   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entities (
	dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	entity_id  TEXT NOT NULL,
	level      TEXT NOT NULL DEFAULT '',
	district   TEXT NOT NULL DEFAULT '',
	lat        DOUBLE PRECISION NOT NULL,
	lng        DOUBLE PRECISION NOT NULL,
	data       JSONB NOT NULL,
	PRIMARY KEY (dataset_id, seq)
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	policy       TEXT NOT NULL,
	reference_id TEXT NOT NULL DEFAULT '',
	candidate_id TEXT NOT NULL DEFAULT '',
	config       JSONB,
	status       TEXT NOT NULL DEFAULT 'queued',
	result       JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS verdicts (
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq          INTEGER NOT NULL,
	candidate_id TEXT NOT NULL,
	tag          TEXT NOT NULL,
	data         JSONB NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_entities_district ON entities(dataset_id, district);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_policy ON runs(policy);
CREATE INDEX IF NOT EXISTS idx_verdicts_tag ON verdicts(run_id, tag);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// CreateDataset records the dataset and merges its entities in one
// transaction, so re-importing under the same ID replaces rows in place.
func (s *PostgresStore) CreateDataset(ctx context.Context, ds model.Dataset, entities []model.Entity) (*model.Dataset, error) {
	if ds.ID == "" {
		ds.ID = uuid.New().String()
	}
	ds.CreatedAt = time.Now().UTC()
	ds.Rows = len(entities)

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO datasets (id, name, source, row_count, rejected, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			ds.ID, ds.Name, ds.Source, ds.Rows, ds.Rejected, ds.CreatedAt,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert dataset")
		}
		_, err = db.MergeInto(ctx, tx, entityMerge, entities, func(i int, e model.Entity) ([]any, error) {
			data, err := json.Marshal(e)
			if err != nil {
				return nil, eris.Wrapf(err, "postgres: marshal entity %s", e.ID)
			}
			return []any{
				ds.ID, i, e.ID, string(e.Level), e.Region.District,
				e.Location.Lat(), e.Location.Lng(), data,
			}, nil
		})
		return eris.Wrapf(err, "postgres: merge entities for %s", ds.ID)
	})
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (s *PostgresStore) GetDataset(ctx context.Context, id string) (*model.Dataset, error) {
	var ds model.Dataset
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, source, row_count, rejected, created_at FROM datasets WHERE id = $1`, id,
	).Scan(&ds.ID, &ds.Name, &ds.Source, &ds.Rows, &ds.Rejected, &ds.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "dataset %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get dataset %s", id)
	}
	return &ds, nil
}

func (s *PostgresStore) ListDatasets(ctx context.Context) ([]model.Dataset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, source, row_count, rejected, created_at FROM datasets ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list datasets")
	}
	defer rows.Close()

	var out []model.Dataset
	for rows.Next() {
		var ds model.Dataset
		if err := rows.Scan(&ds.ID, &ds.Name, &ds.Source, &ds.Rows, &ds.Rejected, &ds.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dataset")
		}
		out = append(out, ds)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list datasets iterate")
}

func (s *PostgresStore) LoadEntities(ctx context.Context, datasetID string) ([]model.Entity, error) {
	if _, err := s.GetDataset(ctx, datasetID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM entities WHERE dataset_id = $1 ORDER BY seq`, datasetID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load entities %s", datasetID)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		var e model.Entity
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal entity")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: load entities iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	run.Status = model.RunStatusQueued
	run.CreatedAt = now
	run.UpdatedAt = now

	var cfg []byte
	if len(run.Config) > 0 {
		cfg = run.Config
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, policy, reference_id, candidate_id, config, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, string(run.Policy), run.ReferenceID, run.CandidateID, cfg, string(run.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(resultStatus(result)), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresRunColumns+` FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Policy != "" {
		query += fmt.Sprintf(` AND policy = $%d`, argIdx)
		args = append(args, string(filter.Policy))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveVerdicts replaces the verdicts stored for runID and bulk-loads the new
// set with COPY in the same transaction.
func (s *PostgresStore) SaveVerdicts(ctx context.Context, runID string, verdicts []model.Verdict) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM verdicts WHERE run_id = $1`, runID); err != nil {
			return eris.Wrapf(err, "postgres: clear verdicts %s", runID)
		}
		_, err := db.Copy(ctx, tx, "verdicts", verdictColumns, verdicts, func(i int, v model.Verdict) ([]any, error) {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, eris.Wrapf(err, "postgres: marshal verdict %s", v.CandidateID)
			}
			return []any{runID, i, v.CandidateID, string(v.Tag), data}, nil
		})
		return eris.Wrapf(err, "postgres: save verdicts %s", runID)
	})
}

func (s *PostgresStore) ListVerdicts(ctx context.Context, runID string) ([]model.Verdict, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM verdicts WHERE run_id = $1 ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list verdicts %s", runID)
	}
	defer rows.Close()

	var out []model.Verdict
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan verdict")
		}
		var v model.Verdict
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal verdict")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list verdicts iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var policy, status string
	var cfgJSON, resultJSON []byte

	if err := row.Scan(&r.ID, &policy, &r.ReferenceID, &r.CandidateID, &cfgJSON, &status, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if len(cfgJSON) > 0 {
		r.Config = cfgJSON
	}
	r.Policy = model.Policy(policy)
	r.Status = model.RunStatus(status)
	if resultJSON != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}
