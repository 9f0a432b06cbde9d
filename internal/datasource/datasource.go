package datasource

import (
	"context"
	"io"
)

// Source is anything that can open a dataset file for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
