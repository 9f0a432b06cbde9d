package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/zeebo/xxh3"

	"funnel/internal/config"
	"funnel/internal/datasource"
)

// Load parses one dataset CSV into a typed Table.
//
// Contract (matches the loader section of the report pipeline):
//   - Returns an error only for fatal I/O problems (open/read/header). Such
//     errors abort the run; no table can be produced.
//   - Individual malformed cells never abort the load: unparseable timestamp
//     or numeric cells become nil and are reported through onErr (which may
//     be nil). Malformed CSV lines are skipped and reported the same way.
//   - Row order and row count of parseable lines are preserved exactly; no
//     filtering happens here.
//   - Columns declared in spec but missing from the header are omitted from
//     the resulting table; the schema validator reports them.
//
// While reading, the raw bytes are hashed (xxh3) and the digest is recorded
// on the table, so two runs over identical files are provably identical.
func Load(
	ctx context.Context,
	src datasource.Source,
	spec TableSpec,
	opt config.Options,
	onErr func(line int, err error),
) (*Table, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", spec.Name, err)
	}
	defer rc.Close()

	hasHeader := opt.Bool("has_header", true)
	comma := opt.Rune("comma", ',')
	trim := opt.Bool("trim_space", true)
	lazy := opt.Bool("lazy_quotes", true)
	hm := opt.StringMap("header_map")

	h := xxh3.New()
	cr := csv.NewReader(io.TeeReader(rc, h))
	cr.Comma = comma
	cr.ReuseRecord = true
	cr.LazyQuotes = lazy
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var line int
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	// Map spec columns to source indexes.
	colIx := make([]int, len(spec.Columns))
	for i := range colIx {
		colIx[i] = -1
	}

	if hasHeader {
		hdr, err := readRec()
		if err != nil {
			return nil, fmt.Errorf("load %s: read header: %w", spec.Name, err)
		}
		srcToIdx := make(map[string]int, len(hdr))
		for i, name := range hdr {
			if i == 0 {
				name = strings.TrimPrefix(name, "\uFEFF")
			}
			if mapped, ok := hm[strings.TrimSpace(name)]; ok {
				name = mapped
			} else {
				name = NormalizeHeader(name)
			}
			srcToIdx[name] = i
		}
		for t, c := range spec.Columns {
			if si, ok := srcToIdx[c.Name]; ok {
				colIx[t] = si
			}
		}
	} else {
		for i := range spec.Columns {
			colIx[i] = i
		}
	}

	// The table carries only the declared columns actually present.
	present := make([]Column, 0, len(spec.Columns))
	presentIx := make([]int, 0, len(spec.Columns))
	coercers := make([]coerceFn, 0, len(spec.Columns))
	for t, c := range spec.Columns {
		if colIx[t] < 0 {
			continue
		}
		present = append(present, c)
		presentIx = append(presentIx, colIx[t])
		coercers = append(coercers, coercerFor(c.Kind))
	}

	tbl := New(spec.Name, present)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := readRec()
		if err == io.EOF {
			break
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		row := make([]any, len(present))
		for j, si := range presentIx {
			if si >= len(rec) {
				continue // short record: absent
			}
			v := rec[si]
			if trim {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				continue
			}
			typed, cerr := coercers[j](v)
			if cerr != nil {
				if onErr != nil {
					onErr(line, fmt.Errorf("column %s: %w", present[j].Name, cerr))
				}
				continue // soft-fail: cell stays absent
			}
			row[j] = typed
		}
		tbl.AppendRow(row)
	}

	tbl.fp = h.Sum64()
	return tbl, nil
}
