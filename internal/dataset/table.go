// Package dataset holds the in-memory tabular model used by the analytics
// engine: column-typed, immutable-after-load tables with an explicit nil
// marker for absent cells.
//
// Cells are one of: string, time.Time (timezone-naive wall clock), float64,
// or nil. The typed accessors (Time, Float, Str) report presence via a
// second return value so metric code never has to type-assert.
package dataset

import "time"

// Kind is the declared type of a column.
type Kind int

const (
	// KindText leaves cells as trimmed strings.
	KindText Kind = iota
	// KindTime parses cells into timezone-naive instants.
	KindTime
	// KindFloat parses cells into float64.
	KindFloat
)

// Column describes one declared column of a table.
type Column struct {
	Name string
	Kind Kind
}

// TableSpec declares a dataset: its logical name, default filename, primary
// key column, and the columns the engine consumes (with their kinds).
// The five CityCar specs live in internal/schema.
type TableSpec struct {
	Name    string
	File    string
	Key     string
	Columns []Column
}

// Table is a loaded, read-only table. Row order matches the source file.
//
// Tables are built once (by Load or by the join engine) and then shared by
// reference across metric functions; nothing mutates a table after it is
// returned to a caller.
type Table struct {
	name string
	cols []Column
	idx  map[string]int
	rows [][]any
	fp   uint64
}

// New returns an empty table with the given columns. Used by the join engine
// and by tests; loaded tables come from Load.
func New(name string, cols []Column) *Table {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c.Name] = i
	}
	return &Table{name: name, cols: cols, idx: idx}
}

// AppendRow adds one row. len(vals) must equal the number of columns; the
// table takes ownership of the slice.
func (t *Table) AppendRow(vals []any) {
	t.rows = append(t.rows, vals)
}

// Name reports the logical table name (e.g. "ride_requests").
func (t *Table) Name() string { return t.name }

// Len reports the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Columns returns the declared columns in order. Callers must not modify the
// returned slice.
func (t *Table) Columns() []Column { return t.cols }

// ColIndex reports the position of the named column, or false when the table
// does not carry it (e.g. the source file lacked the header).
func (t *Table) ColIndex(name string) (int, bool) {
	i, ok := t.idx[name]
	return i, ok
}

// HasColumn reports whether the named column is present.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.idx[name]
	return ok
}

// Row returns the raw cells of row i. Callers must not modify it.
func (t *Table) Row(i int) []any { return t.rows[i] }

// Value returns the raw cell at (row, col), or nil when the column is absent
// or the cell is empty.
func (t *Table) Value(row int, col string) any {
	i, ok := t.idx[col]
	if !ok {
		return nil
	}
	return t.rows[row][i]
}

// Time returns the cell as an instant. ok is false for absent cells.
func (t *Table) Time(row int, col string) (time.Time, bool) {
	v, ok := t.Value(row, col).(time.Time)
	return v, ok
}

// Float returns the cell as a float64. ok is false for absent cells.
func (t *Table) Float(row int, col string) (float64, bool) {
	v, ok := t.Value(row, col).(float64)
	return v, ok
}

// Str returns the cell as a string. ok is false for absent cells.
func (t *Table) Str(row int, col string) (string, bool) {
	v, ok := t.Value(row, col).(string)
	return v, ok
}

// Fingerprint reports the xxh3 hash of the raw source bytes, or 0 for tables
// not produced by Load (joined views, test fixtures).
func (t *Table) Fingerprint() uint64 { return t.fp }
