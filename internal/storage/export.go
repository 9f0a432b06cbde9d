package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"funnel/internal/funnel"
	"funnel/internal/metrics"
)

// ReportColumns is the fixed column order of the exported report table: one
// row per metric, values serialized as JSON so grouped results survive
// round-trips through any backend.
var ReportColumns = []string{
	"run_id",
	"job",
	"metric",
	"value",
	"fingerprints",
	"computed_at",
}

// ReportRows flattens a finished report into rows aligned to ReportColumns.
// fingerprints is the combined input digest logged by the loader, so a stored
// row can be traced back to the exact input files that produced it.
func ReportRows(runID, job string, r *funnel.Report, fingerprints string, computedAt time.Time) ([][]any, error) {
	entries := r.Entries()
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		v, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("export: marshal %s: %w", e.Name, err)
		}
		rows = append(rows, []any{
			runID,
			job,
			e.Name,
			string(v),
			fingerprints,
			computedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows, nil
}

// Export inserts one row per report metric, bootstrapping the report table
// first when cfg.AutoCreate is set.
func Export(ctx context.Context, cfg Config, repo Repository, runID, job string, r *funnel.Report, fingerprints string) error {
	if cfg.AutoCreate {
		if err := EnsureReportTable(ctx, cfg.Kind, cfg.Table, repo); err != nil {
			return err
		}
	}
	rows, err := ReportRows(runID, job, r, fingerprints, time.Now())
	if err != nil {
		return err
	}
	n, err := repo.CopyFrom(ctx, ReportColumns, rows)
	if err != nil {
		return fmt.Errorf("export: insert report rows: %w", err)
	}
	metrics.RecordRows(job, "exported", n)
	metrics.RecordBatches(job, 1)
	log.Printf("stage=export kind=%s table=%s rows=%d run_id=%s", cfg.Kind, cfg.Table, n, runID)
	return nil
}
