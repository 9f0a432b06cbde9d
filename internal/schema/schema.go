// Package schema declares the five CityCar dataset contracts and implements
// the pre-computation checks: required columns and primary-key uniqueness.
// Every metric assumes these checks ran first, so the report builder treats
// any failure here as fatal for the whole report.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"funnel/internal/dataset"
)

// Dataset names, in funnel order.
const (
	AppDownloads = "app_downloads"
	Signups      = "signups"
	RideRequests = "ride_requests"
	Transactions = "transactions"
	Reviews      = "reviews"
)

// Specs lists the dataset contracts in load order. The column lists are the
// fields the engine consumes; extra columns in a source file are ignored.
var Specs = []dataset.TableSpec{
	{
		Name: AppDownloads,
		File: "app_downloads.csv",
		Key:  "app_download_key",
		Columns: []dataset.Column{
			{Name: "app_download_key", Kind: dataset.KindText},
			{Name: "platform", Kind: dataset.KindText},
			{Name: "download_ts", Kind: dataset.KindTime},
		},
	},
	{
		Name: Signups,
		File: "signups.csv",
		Key:  "user_id",
		Columns: []dataset.Column{
			{Name: "user_id", Kind: dataset.KindText},
			{Name: "session_id", Kind: dataset.KindText},
			{Name: "signup_ts", Kind: dataset.KindTime},
			{Name: "age_range", Kind: dataset.KindText},
		},
	},
	{
		Name: RideRequests,
		File: "ride_requests.csv",
		Key:  "ride_id",
		Columns: []dataset.Column{
			{Name: "ride_id", Kind: dataset.KindText},
			{Name: "user_id", Kind: dataset.KindText},
			{Name: "driver_id", Kind: dataset.KindText},
			{Name: "request_ts", Kind: dataset.KindTime},
			{Name: "accept_ts", Kind: dataset.KindTime},
			{Name: "pickup_ts", Kind: dataset.KindTime},
			{Name: "dropoff_ts", Kind: dataset.KindTime},
			{Name: "cancel_ts", Kind: dataset.KindTime},
		},
	},
	{
		Name: Transactions,
		File: "transactions.csv",
		Key:  "transaction_id",
		Columns: []dataset.Column{
			{Name: "transaction_id", Kind: dataset.KindText},
			{Name: "ride_id", Kind: dataset.KindText},
			{Name: "purchase_amount_usd", Kind: dataset.KindFloat},
			{Name: "charge_status", Kind: dataset.KindText},
			{Name: "transaction_ts", Kind: dataset.KindTime},
		},
	},
	{
		Name: Reviews,
		File: "reviews.csv",
		Key:  "review_id",
		Columns: []dataset.Column{
			{Name: "review_id", Kind: dataset.KindText},
			{Name: "ride_id", Kind: dataset.KindText},
			{Name: "user_id", Kind: dataset.KindText},
			{Name: "driver_id", Kind: dataset.KindText},
			{Name: "rating", Kind: dataset.KindFloat},
			{Name: "review", Kind: dataset.KindText},
		},
	},
}

// SpecFor returns the contract for a dataset name.
func SpecFor(name string) (dataset.TableSpec, bool) {
	for _, s := range Specs {
		if s.Name == name {
			return s, true
		}
	}
	return dataset.TableSpec{}, false
}

// RequiredColumns returns the column names a dataset must carry.
func RequiredColumns(spec dataset.TableSpec) []string {
	out := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		out[i] = c.Name
	}
	return out
}

// Error reports a table that is missing required columns. It is fatal for
// the whole report: partial computation over a wrong schema would be
// misleading.
type Error struct {
	Table   string
	Missing []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("table %s: missing required columns: %s",
		e.Table, strings.Join(e.Missing, ", "))
}

// Validate confirms that t carries every required column. Extra columns are
// never an error (forward-compatible). The check is pure; it must run before
// any metric touches the table.
func Validate(tableName string, t *dataset.Table, required []string) error {
	var missing []string
	for _, col := range required {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &Error{Table: tableName, Missing: missing}
	}
	return nil
}

// CheckPrimaryKey verifies that the key column's non-absent values are unique
// within the table. Duplicate keys are a validation error, never a silent
// dedup. Rows with an absent key are skipped here; required-column presence
// is Validate's job, per-row key absence is tolerated as a soft data issue.
func CheckPrimaryKey(t *dataset.Table, key string) error {
	if !t.HasColumn(key) {
		return &Error{Table: t.Name(), Missing: []string{key}}
	}
	seen := make(map[string]int, t.Len())
	for i := 0; i < t.Len(); i++ {
		v, ok := t.Str(i, key)
		if !ok {
			continue
		}
		if first, dup := seen[v]; dup {
			return fmt.Errorf("table %s: duplicate %s %q (rows %d and %d)",
				t.Name(), key, v, first, i)
		}
		seen[v] = i
	}
	return nil
}
