package funnel

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"funnel/internal/dataset"
	"funnel/internal/metrics"
	"funnel/internal/schema"
)

// Mode selects a slice of the metric catalog. ModeAll runs everything.
type Mode string

const (
	ModeWarmup   Mode = "warmup"
	ModeFunnel   Mode = "funnel"
	ModePlatform Mode = "platform"
	ModeAge      Mode = "age"
	ModeQuality  Mode = "quality"
	ModeSurge    Mode = "surge"
	ModeAll      Mode = "all"
)

// metricFn is a pure metric over the shared tables. A returned error marks
// this one entry Undefined; it never aborts the rest of the report.
type metricFn func(Tables) (Value, error)

type metricDef struct {
	name string
	mode Mode
	fn   metricFn
}

// catalog is the full metric list in report order. The order is fixed and
// part of the output contract.
var catalog = []metricDef{
	{"app_downloads", ModeWarmup, AppDownloadCount},
	{"signups", ModeWarmup, SignupCount},
	{"ride_requests", ModeWarmup, RideRequestCount},
	{"completed_rides", ModeWarmup, CompletedRides},
	{"ride_requests_and_unique_users", ModeWarmup, RideRequestsAndUniqueUsers},
	{"average_duration_minutes", ModeWarmup, AverageDurationMinutes},
	{"accepted_rides", ModeWarmup, AcceptedRides},
	{"charged_rides_and_revenue", ModeWarmup, ChargedRidesAndRevenue},
	{"requests_per_platform", ModeWarmup, RequestsPerPlatform},
	{"dropoff_signup_to_request", ModeWarmup, DropoffSignupToRequest},
	{"funnel_steps", ModeFunnel, FunnelSteps},
	{"dropoff_gap", ModeFunnel, DropoffGap},
	{"platform_conversion", ModePlatform, PlatformConversion},
	{"funnel_by_age", ModeAge, FunnelByAge},
	{"duration_quality", ModeQuality, DurationQuality},
	{"cancellation_wait", ModeQuality, CancellationWait},
	{"hourly_demand", ModeSurge, HourlyDemand},
	{"cancellations_by_hour", ModeSurge, CancellationsByHour},
}

// KnownMode reports whether m names a mode the catalog understands.
func KnownMode(m Mode) bool {
	if m == ModeAll {
		return true
	}
	for _, d := range catalog {
		if d.mode == m {
			return true
		}
	}
	return false
}

// Entry is one name/value pair of the report.
type Entry struct {
	Name  string
	Value Value
}

// Report is the ordered metric mapping. Consumers iterate Entries in order;
// no re-sorting is ever needed.
type Report struct {
	entries []Entry
	index   map[string]int
}

func newReport() *Report {
	return &Report{index: make(map[string]int)}
}

func (r *Report) add(name string, v Value) {
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, Entry{Name: name, Value: v})
}

// Entries returns the report entries in catalog order.
func (r *Report) Entries() []Entry { return r.entries }

// Lookup returns the value for a metric name.
func (r *Report) Lookup(name string) (Value, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.entries[i].Value, true
}

// MarshalJSON emits the report as a JSON object preserving entry order.
func (r *Report) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range r.entries {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:", e.Name)
		v, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// WriteText renders the report as aligned name = value lines.
func (r *Report) WriteText(w io.Writer) error {
	width := 0
	for _, e := range r.entries {
		if len(e.Name) > width {
			width = len(e.Name)
		}
	}
	for _, e := range r.entries {
		if _, err := fmt.Fprintf(w, "%-*s = %s\n", width, e.Name, e.Value.String()); err != nil {
			return err
		}
	}
	return nil
}

// validateTables runs the schema checks over every dataset, fail-fast: the
// first missing column or duplicate primary key aborts the whole report.
func validateTables(t Tables) error {
	byName := map[string]*dataset.Table{
		schema.AppDownloads: t.Downloads,
		schema.Signups:      t.Signups,
		schema.RideRequests: t.Rides,
		schema.Transactions: t.Transactions,
		schema.Reviews:      t.Reviews,
	}
	for _, spec := range schema.Specs {
		tbl := byName[spec.Name]
		if tbl == nil {
			return fmt.Errorf("dataset %s not loaded", spec.Name)
		}
		if err := schema.Validate(spec.Name, tbl, schema.RequiredColumns(spec)); err != nil {
			return err
		}
		if err := schema.CheckPrimaryKey(tbl, spec.Key); err != nil {
			return err
		}
	}
	return nil
}

// BuildReport validates every table, then runs the selected metrics in
// catalog order. A metric that fails internally becomes an Undefined entry;
// only validation failures abort.
func BuildReport(job string, t Tables, modes ...Mode) (*Report, error) {
	if err := validateTables(t); err != nil {
		return nil, err
	}

	selected := func(m Mode) bool {
		for _, want := range modes {
			if want == ModeAll || want == m {
				return true
			}
		}
		return len(modes) == 0
	}

	r := newReport()
	for _, d := range catalog {
		if !selected(d.mode) {
			continue
		}
		start := time.Now()
		v, err := d.fn(t)
		metrics.RecordStep(job, d.name, err, time.Since(start))
		if err != nil {
			log.Printf("stage=metric job=%s name=%s err=%v", job, d.name, err)
			v = Undefined
		}
		r.add(d.name, v)
	}
	return r, nil
}
