package storage

import (
	"context"
	"fmt"
	"sync"
)

// DDLBootstrapper is a backend-specific function that applies the DDL needed
// before report rows can be inserted (typically CREATE TABLE IF NOT EXISTS
// via repo.Exec).
//
// Backends (postgres, mssql, sqlite, etc.) register their implementation for
// a given storage kind at init time.
type DDLBootstrapper func(ctx context.Context, repo Repository, table string) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) a DDLBootstrapper for the given storage
// kind. It is typically called from backend packages' init() functions.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureReportTable locates the DDLBootstrapper for the kind and invokes it.
// Callers do not need to know which backend they are using; they pass the
// already-open Repository and the target table name.
//
// If no DDL bootstrapper has been registered for the storage kind, an error
// is returned.
func EnsureReportTable(ctx context.Context, kind, table string, repo Repository) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for export.kind=%q", kind)
	}
	return fn(ctx, repo, table)
}
