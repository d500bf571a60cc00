package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/schoolsite/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	row_count  INTEGER NOT NULL DEFAULT 0,
	rejected   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS entities (
	dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	entity_id  TEXT NOT NULL,
	level      TEXT NOT NULL DEFAULT '',
	district   TEXT NOT NULL DEFAULT '',
	lat        REAL NOT NULL,
	lng        REAL NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (dataset_id, seq)
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	policy       TEXT NOT NULL,
	reference_id TEXT NOT NULL DEFAULT '',
	candidate_id TEXT NOT NULL DEFAULT '',
	config       TEXT,
	status       TEXT NOT NULL DEFAULT 'queued',
	result       TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS verdicts (
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq          INTEGER NOT NULL,
	candidate_id TEXT NOT NULL,
	tag          TEXT NOT NULL,
	data         TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_entities_district ON entities(dataset_id, district);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_policy ON runs(policy);
CREATE INDEX IF NOT EXISTS idx_verdicts_tag ON verdicts(run_id, tag);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDataset(ctx context.Context, ds model.Dataset, entities []model.Entity) (*model.Dataset, error) {
	if ds.ID == "" {
		ds.ID = uuid.New().String()
	}
	ds.CreatedAt = time.Now().UTC()
	ds.Rows = len(entities)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin dataset tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (id, name, source, row_count, rejected, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ds.ID, ds.Name, ds.Source, ds.Rows, ds.Rejected, ds.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert dataset")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entities (dataset_id, seq, entity_id, level, district, lat, lng, data) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare entity insert")
	}
	defer stmt.Close()

	for i, e := range entities {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: marshal entity %s", e.ID)
		}
		if _, err := stmt.ExecContext(ctx,
			ds.ID, i, e.ID, string(e.Level), e.Region.District,
			e.Location.Lat(), e.Location.Lng(), string(data),
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert entity %s", e.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit dataset")
	}
	return &ds, nil
}

func (s *SQLiteStore) GetDataset(ctx context.Context, id string) (*model.Dataset, error) {
	var ds model.Dataset
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, source, row_count, rejected, created_at FROM datasets WHERE id = ?`, id,
	).Scan(&ds.ID, &ds.Name, &ds.Source, &ds.Rows, &ds.Rejected, &ds.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "dataset %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get dataset %s", id)
	}
	return &ds, nil
}

func (s *SQLiteStore) ListDatasets(ctx context.Context) ([]model.Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, source, row_count, rejected, created_at FROM datasets ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list datasets")
	}
	defer rows.Close()

	var out []model.Dataset
	for rows.Next() {
		var ds model.Dataset
		if err := rows.Scan(&ds.ID, &ds.Name, &ds.Source, &ds.Rows, &ds.Rejected, &ds.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dataset")
		}
		out = append(out, ds)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list datasets iterate")
}

func (s *SQLiteStore) LoadEntities(ctx context.Context, datasetID string) ([]model.Entity, error) {
	if _, err := s.GetDataset(ctx, datasetID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM entities WHERE dataset_id = ? ORDER BY seq`, datasetID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load entities %s", datasetID)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		var e model.Entity
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal entity")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load entities iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	run.Status = model.RunStatusQueued
	run.CreatedAt = now
	run.UpdatedAt = now

	var cfg sql.NullString
	if len(run.Config) > 0 {
		cfg = sql.NullString{String: string(run.Config), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, policy, reference_id, candidate_id, config, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Policy), run.ReferenceID, run.CandidateID, cfg, string(run.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(resultStatus(result)), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const sqliteRunColumns = `id, policy, reference_id, candidate_id, config, status, result, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Policy != "" {
		query += ` AND policy = ?`
		args = append(args, string(filter.Policy))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveVerdicts replaces the verdicts stored for runID, preserving order.
func (s *SQLiteStore) SaveVerdicts(ctx context.Context, runID string, verdicts []model.Verdict) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin verdicts tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM verdicts WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: clear verdicts %s", runID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO verdicts (run_id, seq, candidate_id, tag, data) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare verdict insert")
	}
	defer stmt.Close()

	for i, v := range verdicts {
		data, err := json.Marshal(v)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal verdict %s", v.CandidateID)
		}
		if _, err := stmt.ExecContext(ctx, runID, i, v.CandidateID, string(v.Tag), string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: insert verdict %s", v.CandidateID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit verdicts")
}

func (s *SQLiteStore) ListVerdicts(ctx context.Context, runID string) ([]model.Verdict, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM verdicts WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list verdicts %s", runID)
	}
	defer rows.Close()

	var out []model.Verdict
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan verdict")
		}
		var v model.Verdict
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal verdict")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list verdicts iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var cfg, resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.Policy, &r.ReferenceID, &r.CandidateID, &cfg, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if cfg.Valid {
		r.Config = []byte(cfg.String)
	}
	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
