// This file wires the MySQL backend into the storage-agnostic factory.
package mysql

import (
	"context"
	"fmt"

	"funnel/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:   cfg.DSN,
			Table: cfg.Table,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("mysql",
		func(ctx context.Context, repo storage.Repository, table string) error {
			return repo.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    run_id       VARCHAR(64)  NOT NULL,
    job          VARCHAR(64)  NOT NULL,
    metric       VARCHAR(128) NOT NULL,
    value        TEXT,
    fingerprints TEXT,
    computed_at  VARCHAR(32)  NOT NULL
)`, table))
		})
}

// wrappedRepo adapts *mysql.Repository to storage.Repository and provides Close.
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
