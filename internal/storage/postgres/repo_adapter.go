// This file wires the Postgres backend into the storage factory.
package postgres

import (
	"context"
	"fmt"

	"funnel/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo adapts *postgres.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:   cfg.DSN,
			Table: cfg.Table,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres",
		func(ctx context.Context, repo storage.Repository, table string) error {
			return repo.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    run_id       TEXT NOT NULL,
    job          TEXT NOT NULL,
    metric       TEXT NOT NULL,
    value        TEXT,
    fingerprints TEXT,
    computed_at  TEXT NOT NULL
)`, pgFQN(table)))
		})
}
