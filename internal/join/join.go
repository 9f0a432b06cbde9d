// Package join implements the hash-join used to assemble the analytics views.
// It is deliberately single-pass and deterministic: output order follows the
// left table's row order, with right-side fan-out in right row order.
package join

import (
	"fmt"

	"funnel/internal/dataset"
)

// Kind selects the join semantics.
type Kind int

const (
	// Inner keeps only left rows with at least one key match on the right.
	Inner Kind = iota
	// Left keeps every left row; unmatched rows get nil for all right columns.
	Left
)

func (k Kind) String() string {
	switch k {
	case Inner:
		return "inner"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("join.Kind(%d)", int(k))
	}
}

// Join equi-joins left and right on leftKey = rightKey.
//
// Semantics:
//   - Keys compare as their typed values; an absent (nil) key never matches
//     anything, on either side, regardless of join kind. A left join still
//     keeps a nil-key left row, null-filled.
//   - A left row matching n right rows produces n output rows (fan-out).
//   - Output columns are the left columns followed by the right columns,
//     minus the right key (it duplicates the left key's value on matched
//     rows). A right column whose name collides with a left column is kept
//     under "<rightTable>.<name>"; the left column wins the bare name.
//   - Output order: left row order, then right row order within a key.
//
// Both key columns must exist; that is the only error case.
func Join(left, right *dataset.Table, leftKey, rightKey string, kind Kind) (*dataset.Table, error) {
	if !left.HasColumn(leftKey) {
		return nil, fmt.Errorf("join: left table %s has no column %s", left.Name(), leftKey)
	}
	rkIdx, ok := right.ColIndex(rightKey)
	if !ok {
		return nil, fmt.Errorf("join: right table %s has no column %s", right.Name(), rightKey)
	}

	// Output schema: left columns as-is, right columns (minus key) renamed on
	// collision.
	leftCols := left.Columns()
	seen := make(map[string]bool, len(leftCols))
	for _, c := range leftCols {
		seen[c.Name] = true
	}
	cols := make([]dataset.Column, 0, len(leftCols)+len(right.Columns()))
	cols = append(cols, leftCols...)

	// rightOut maps output positions back to right column indexes.
	var rightOut []int
	for i, c := range right.Columns() {
		if i == rkIdx {
			continue
		}
		name := c.Name
		if seen[name] {
			name = right.Name() + "." + name
		}
		seen[name] = true
		cols = append(cols, dataset.Column{Name: name, Kind: c.Kind})
		rightOut = append(rightOut, i)
	}

	// Build side: bucket right rows by key value. Keys are comparable by
	// construction (string, time.Time, float64).
	buckets := make(map[any][]int, right.Len())
	for i := 0; i < right.Len(); i++ {
		k := right.Row(i)[rkIdx]
		if k == nil {
			continue
		}
		buckets[k] = append(buckets[k], i)
	}

	out := dataset.New(left.Name(), cols)
	nRight := len(rightOut)
	for i := 0; i < left.Len(); i++ {
		lrow := left.Row(i)
		k := left.Value(i, leftKey)

		var matches []int
		if k != nil {
			matches = buckets[k]
		}
		if len(matches) == 0 {
			if kind == Inner {
				continue
			}
			row := make([]any, len(cols))
			copy(row, lrow)
			out.AppendRow(row)
			continue
		}
		for _, ri := range matches {
			row := make([]any, len(cols))
			copy(row, lrow)
			rrow := right.Row(ri)
			for j := 0; j < nRight; j++ {
				row[len(lrow)+j] = rrow[rightOut[j]]
			}
			out.AppendRow(row)
		}
	}
	return out, nil
}
