// This file wires the MSSQL backend into the storage-agnostic factory.
package mssql

import (
	"context"
	"fmt"

	"funnel/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

// init registers the "mssql" backend with the factory.
func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:   cfg.DSN,
			Table: cfg.Table,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("mssql",
		func(ctx context.Context, repo storage.Repository, table string) error {
			return repo.Exec(ctx, fmt.Sprintf(`IF OBJECT_ID(N'%[1]s', N'U') IS NULL
CREATE TABLE %[1]s (
    run_id       NVARCHAR(64)  NOT NULL,
    job          NVARCHAR(64)  NOT NULL,
    metric       NVARCHAR(128) NOT NULL,
    value        NVARCHAR(MAX),
    fingerprints NVARCHAR(MAX),
    computed_at  NVARCHAR(32)  NOT NULL
)`, table))
		})
}

// wrappedRepo adapts *mssql.Repository to storage.Repository and provides Close.
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
