// Package store persists normalized datasets, analysis runs, and their verdicts.
// The live proximity index is never stored; it is rebuilt from entities.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schoolsite/internal/model"
)

var (
	// ErrNotFound is returned when a dataset or run does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = eris.New("store: unknown driver")
)

const defaultListLimit = 100

// Store defines the persistence interface for datasets and analysis runs.
type Store interface {
	// Datasets
	CreateDataset(ctx context.Context, ds model.Dataset, entities []model.Entity) (*model.Dataset, error)
	GetDataset(ctx context.Context, id string) (*model.Dataset, error)
	ListDatasets(ctx context.Context) ([]model.Dataset, error)
	LoadEntities(ctx context.Context, datasetID string) ([]model.Entity, error)

	// Runs
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	// Verdicts
	SaveVerdicts(ctx context.Context, runID string, verdicts []model.Verdict) error
	ListVerdicts(ctx context.Context, runID string) ([]model.Verdict, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store named by driver ("sqlite" or "postgres") and
// applies migrations.
func Open(ctx context.Context, driver, dsn string, maxConns int32) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite":
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn, &PoolConfig{MaxConns: maxConns})
	default:
		return nil, eris.Wrapf(ErrUnknownDriver, "store: open %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// resultStatus is the terminal status recorded alongside a run result.
func resultStatus(result *model.RunResult) model.RunStatus {
	if result != nil && result.Error != "" {
		return model.RunStatusFailed
	}
	return model.RunStatusComplete
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
