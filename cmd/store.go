package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schoolsite/internal/store"
)

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.Driver == "none" {
		return nil, eris.New("store is disabled (store.driver=none); set SCHOOLSITE_STORE_DRIVER")
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.MaxConns)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}
