// Package storage contains the storage-agnostic contracts for exporting a
// finished report to a database: a minimal Repository interface, a factory
// registry keyed by backend kind, and the report row layout.
//
// Concrete backends (sqlite, postgres, mysql, mssql) live in subpackages and
// register themselves at init time; callers blank-import storage/all and
// select a backend by name.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is the minimal contract the report exporter relies on.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to the columns order and reports the
	// number inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs an arbitrary statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	// Close releases the underlying connection pool.
	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind  string // backend name, e.g. "sqlite"
	DSN   string
	Table string // target table for report rows

	// AutoCreate applies the backend's report-table DDL before inserting.
	AutoCreate bool
}

// Factory constructs a ready-to-use Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a backend kind. Called from
// backend packages' init() functions.
func Register(kind string, fn Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = fn
}

// New constructs a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	fn, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// ListKinds returns the registered backend names, sorted, as a snapshot copy.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
