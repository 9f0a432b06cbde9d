package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"funnel/internal/config"
	"funnel/internal/dataset"
	"funnel/internal/datasource"
	"funnel/internal/datasource/file"
	"funnel/internal/datasource/httpds"
	"funnel/internal/funnel"
	"funnel/internal/metrics"
	"funnel/internal/schema"
	"funnel/internal/storage"
)

// Seams for tests: replace these to run the container without real files,
// networks or databases.
var (
	openSourceFn    = openSource
	loadTableFn     = dataset.Load
	newRepositoryFn = storage.New
	nowFn           = time.Now
)

// loadIssueLimit caps how many individual load issues are echoed to the log;
// the rest are summarized per table.
const loadIssueLimit = 5

// counters accumulates run totals for the end-of-run summary line.
type counters struct {
	loaded       int64
	cellErrors   int64
	linesSkipped int64
	exported     int64
}

// errAgg collects soft load issues (malformed cells, skipped lines) without
// flooding the log: it keeps the first few verbatim and counts the rest per
// table.
type errAgg struct {
	limit   int
	count   int
	first   []string
	buckets map[string]int
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit, buckets: map[string]int{}}
}

func (a *errAgg) add(table string, line int, err error) {
	a.count++
	a.buckets[table]++
	if len(a.first) < a.limit {
		a.first = append(a.first, fmt.Sprintf("%s line %d: %v", table, line, err))
	}
}

// logSummary writes the retained samples and the per-table issue counts.
func (a *errAgg) logSummary() {
	if a.count == 0 {
		return
	}
	for _, msg := range a.first {
		log.Printf("stage=load issue=%q", msg)
	}
	tables := make([]string, 0, len(a.buckets))
	for t := range a.buckets {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		log.Printf("stage=load table=%s issues=%d", t, a.buckets[t])
	}
}

// container wires one run end to end: load, validate, compute, render, export.
type container struct {
	pipeline config.Pipeline
	verbose  bool
	out      io.Writer
}

func newContainer(p config.Pipeline, verbose bool) *container {
	return &container{pipeline: p, verbose: verbose, out: os.Stdout}
}

// checkDataDir lists the data directory and warns about expected dataset
// files that are not there. Purely advisory: the load itself produces the
// fatal error, this just makes the log explain it.
func (c *container) checkDataDir() {
	p := c.pipeline
	names, err := file.List(p.Source.Dir.Path)
	if err != nil {
		log.Printf("stage=discover dir=%s err=%v", p.Source.Dir.Path, err)
		return
	}
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	for _, spec := range schema.Specs {
		want := spec.File
		if override := p.Source.Files[spec.Name]; override != "" {
			want = override
		}
		if !have[want] {
			log.Printf("stage=discover dir=%s missing=%s", p.Source.Dir.Path, want)
		}
	}
	if c.verbose {
		log.Printf("stage=discover dir=%s csv_files=%d", p.Source.Dir.Path, len(names))
	}
}

// openSource builds a datasource for one dataset file per the source config.
func openSource(src config.Source, filename string) (datasource.Source, error) {
	switch src.Kind {
	case "dir":
		return file.InDir(src.Dir.Path, filename), nil
	case "http":
		client := httpds.NewClient(httpds.Config{
			InsecureSkipVerify: src.HTTP.InsecureSkipVerify,
		})
		return httpds.NewSource(client, httpds.JoinURL(src.HTTP.BaseURL, filename)), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

// execute runs the whole pipeline. Fatal load or validation problems abort;
// soft data issues are aggregated and summarized at the end.
func (c *container) execute(ctx context.Context) error {
	p := c.pipeline
	start := nowFn()
	agg := newErrAgg(loadIssueLimit)
	var n counters

	if p.Source.Kind == "dir" {
		c.checkDataDir()
	}

	loaded := make(map[string]*dataset.Table, len(schema.Specs))
	fps := make([]string, 0, len(schema.Specs))

	for _, spec := range schema.Specs {
		filename := spec.File
		if override := p.Source.Files[spec.Name]; override != "" {
			filename = override
		}
		src, err := openSourceFn(p.Source, filename)
		if err != nil {
			return err
		}

		var cellErrs, skipped int64
		onErr := func(line int, err error) {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped++
			} else {
				cellErrs++
			}
			agg.add(spec.Name, line, err)
		}

		loadStart := nowFn()
		tbl, err := loadTableFn(ctx, src, spec, p.Parser.Options, onErr)
		metrics.RecordStep(p.Job, "load_"+spec.Name, err, time.Since(loadStart))
		if err != nil {
			return err
		}

		n.loaded += int64(tbl.Len())
		n.cellErrors += cellErrs
		n.linesSkipped += skipped
		metrics.RecordRows(p.Job, "loaded", int64(tbl.Len()))
		metrics.RecordRows(p.Job, "cell_errors", cellErrs)
		metrics.RecordRows(p.Job, "lines_skipped", skipped)
		if c.verbose {
			log.Printf("stage=load table=%s file=%s rows=%d cell_errors=%d lines_skipped=%d fp=%016x",
				spec.Name, filename, tbl.Len(), cellErrs, skipped, tbl.Fingerprint())
		}

		loaded[spec.Name] = tbl
		fps = append(fps, fmt.Sprintf("%s:%016x", spec.Name, tbl.Fingerprint()))
	}
	fingerprints := strings.Join(fps, ",")

	tables := funnel.Tables{
		Downloads:    loaded[schema.AppDownloads],
		Signups:      loaded[schema.Signups],
		Rides:        loaded[schema.RideRequests],
		Transactions: loaded[schema.Transactions],
		Reviews:      loaded[schema.Reviews],
	}

	modes := make([]funnel.Mode, 0, len(p.Report.Modes))
	for _, m := range p.Report.Modes {
		modes = append(modes, funnel.Mode(m))
	}

	rep, err := funnel.BuildReport(p.Job, tables, modes...)
	if err != nil {
		return err
	}

	if err := c.render(rep); err != nil {
		return err
	}

	if p.Export.Kind != "" {
		if err := c.exportReport(ctx, rep, fingerprints, &n); err != nil {
			return err
		}
	}

	agg.logSummary()
	log.Printf("stage=summary job=%s rows_loaded=%d cell_errors=%d lines_skipped=%d rows_exported=%d took=%s",
		p.Job, n.loaded, n.cellErrors, n.linesSkipped, n.exported, time.Since(start).Round(time.Millisecond))
	return nil
}

// render writes the report to the container's output in the configured format.
func (c *container) render(rep *funnel.Report) error {
	switch c.pipeline.Report.Format {
	case "json":
		b, err := rep.MarshalJSON()
		if err != nil {
			return err
		}
		if _, err := c.out.Write(append(b, '\n')); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		return nil
	case "", "text":
		return rep.WriteText(c.out)
	default:
		return fmt.Errorf("unknown report format %q", c.pipeline.Report.Format)
	}
}

// exportReport persists the finished report through the configured backend.
func (c *container) exportReport(ctx context.Context, rep *funnel.Report, fingerprints string, n *counters) error {
	p := c.pipeline
	table := strings.TrimSpace(p.Export.DB.Table)
	if table == "" {
		table = "funnel_report"
	}
	cfg := storage.Config{
		Kind:       p.Export.Kind,
		DSN:        p.Export.DB.DSN,
		Table:      table,
		AutoCreate: p.Export.DB.AutoCreateTable,
	}

	repo, err := newRepositoryFn(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s repository: %w", cfg.Kind, err)
	}
	defer repo.Close()

	runID := fmt.Sprintf("%s-%d", nowFn().UTC().Format("20060102T150405Z"), os.Getpid())
	start := nowFn()
	err = storage.Export(ctx, cfg, repo, runID, p.Job, rep, fingerprints)
	metrics.RecordStep(p.Job, "export", err, time.Since(start))
	if err != nil {
		return err
	}
	n.exported += int64(len(rep.Entries()))
	return nil
}
