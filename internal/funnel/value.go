// Package funnel holds the metric catalog and the report builder: pure
// functions over typed tables, assembled into an ordered report.
package funnel

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is one report entry's result. The concrete kinds are Count, Scalar,
// CountAmount, Groups, Fields, Records, and Undefined.
//
// JSON marshalling preserves insertion order for the composite kinds;
// Undefined marshals as null, never as 0 or NaN.
type Value interface {
	json.Marshaler
	fmt.Stringer
	isValue()
}

// Count is an integer tally.
type Count int

func (Count) isValue() {}

func (c Count) String() string { return strconv.Itoa(int(c)) }

func (c Count) MarshalJSON() ([]byte, error) { return json.Marshal(int(c)) }

// Scalar is a floating-point result (ratios, means).
type Scalar float64

func (Scalar) isValue() {}

func (s Scalar) String() string {
	return strconv.FormatFloat(float64(s), 'f', 4, 64)
}

func (s Scalar) MarshalJSON() ([]byte, error) { return json.Marshal(float64(s)) }

// CountAmount pairs a row count with a monetary sum.
type CountAmount struct {
	Count  int
	Amount float64
}

func (CountAmount) isValue() {}

func (ca CountAmount) String() string {
	return fmt.Sprintf("count=%d amount=%.2f", ca.Count, ca.Amount)
}

func (ca CountAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Count  int     `json:"count"`
		Amount float64 `json:"amount"`
	}{ca.Count, ca.Amount})
}

// Group is one category bucket of a grouped metric.
type Group struct {
	Key   string
	Count int
}

// Groups is an ordered category-to-count mapping. Order is part of the
// contract; consumers must not need to re-sort.
type Groups []Group

func (Groups) isValue() {}

func (g Groups) String() string {
	parts := make([]string, len(g))
	for i, e := range g {
		parts[i] = fmt.Sprintf("%s=%d", e.Key, e.Count)
	}
	return strings.Join(parts, " ")
}

func (g Groups) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range g {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(e.Count))
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Field is one named sub-result of a composite metric.
type Field struct {
	Name  string
	Value Value
}

// Fields is an ordered name-to-value record.
type Fields []Field

func (Fields) isValue() {}

func (f Fields) String() string {
	parts := make([]string, len(f))
	for i, e := range f {
		parts[i] = e.Name + "=" + e.Value.String()
	}
	return strings.Join(parts, " ")
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range f {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		v, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Record is one keyed row of a per-category breakdown.
type Record struct {
	Key    string
	Fields Fields
}

// Records is an ordered key-to-record mapping (e.g. per-platform stats).
type Records []Record

func (Records) isValue() {}

func (r Records) String() string {
	parts := make([]string, len(r))
	for i, e := range r {
		parts[i] = e.Key + "{" + e.Fields.String() + "}"
	}
	return strings.Join(parts, " ")
}

func (r Records) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range r {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := e.Fields.MarshalJSON()
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

type undefined struct{}

// Undefined is the explicit absent marker for metrics that cannot be
// computed (zero denominator, empty required join). Distinct from zero.
var Undefined Value = undefined{}

func (undefined) isValue() {}

func (undefined) String() string { return "undefined" }

func (undefined) MarshalJSON() ([]byte, error) { return []byte("null"), nil }
