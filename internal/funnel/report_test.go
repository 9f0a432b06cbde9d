package funnel

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"funnel/internal/dataset"
	"funnel/internal/schema"
)

func TestBuildReportOrderAndValues(t *testing.T) {
	r, err := BuildReport("citycar", fullTables(), ModeWarmup)
	if err != nil {
		t.Fatal(err)
	}

	wantOrder := []string{
		"app_downloads",
		"signups",
		"ride_requests",
		"completed_rides",
		"ride_requests_and_unique_users",
		"average_duration_minutes",
		"accepted_rides",
		"charged_rides_and_revenue",
		"requests_per_platform",
		"dropoff_signup_to_request",
	}
	entries := r.Entries()
	if len(entries) != len(wantOrder) {
		t.Fatalf("entries = %d, want %d", len(entries), len(wantOrder))
	}
	for i, name := range wantOrder {
		if entries[i].Name != name {
			t.Errorf("entry[%d] = %q, want %q", i, entries[i].Name, name)
		}
	}

	if v, _ := r.Lookup("app_downloads"); v != Count(3) {
		t.Errorf("app_downloads = %v", v)
	}
	if v, _ := r.Lookup("completed_rides"); v != Count(1) {
		t.Errorf("completed_rides = %v", v)
	}
}

func TestBuildReportAllModes(t *testing.T) {
	r, err := BuildReport("citycar", fullTables(), ModeAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Entries()) != len(catalog) {
		t.Fatalf("all-mode entries = %d, want %d", len(r.Entries()), len(catalog))
	}
	if _, ok := r.Lookup("hourly_demand"); !ok {
		t.Error("hourly_demand missing from all-mode report")
	}
}

func TestBuildReportFailFastOnSchemaError(t *testing.T) {
	tb := fullTables()
	// Rebuild signups without age_range.
	cut := dataset.New("signups", []dataset.Column{
		{Name: "user_id", Kind: dataset.KindText},
		{Name: "session_id", Kind: dataset.KindText},
		{Name: "signup_ts", Kind: dataset.KindTime},
	})
	cut.AppendRow([]any{"u1", "d1", nil})
	tb.Signups = cut

	r, err := BuildReport("citycar", tb, ModeAll)
	if err == nil {
		t.Fatal("missing column must abort the whole report")
	}
	if r != nil {
		t.Error("no partial report on schema failure")
	}
	var serr *schema.Error
	if !errors.As(err, &serr) {
		t.Fatalf("error type = %T", err)
	}
	if serr.Table != "signups" {
		t.Errorf("failing table = %q", serr.Table)
	}
}

func TestBuildReportFailFastOnDuplicateKey(t *testing.T) {
	tb := fullTables()
	dup := build("app_downloads", downloadCols,
		[]any{"d1", "ios", nil},
		[]any{"d1", "ios", nil},
	)
	tb.Downloads = dup

	if _, err := BuildReport("citycar", tb, ModeAll); err == nil {
		t.Fatal("duplicate primary key must abort the report")
	}
}

func TestBuildReportMetricFailureIsUndefined(t *testing.T) {
	// Empty tables make the ratio metrics undefined while the plain counts
	// still compute.
	r, err := BuildReport("citycar", emptyTables(), ModeWarmup)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Lookup("dropoff_signup_to_request"); v != Undefined {
		t.Errorf("dropoff = %v, want undefined", v)
	}
	if v, _ := r.Lookup("average_duration_minutes"); v != Undefined {
		t.Errorf("duration = %v, want undefined", v)
	}
	if v, _ := r.Lookup("app_downloads"); v != Count(0) {
		t.Errorf("one undefined metric must not suppress the rest: %v", v)
	}
}

func TestReportJSONOrderedAndIdempotent(t *testing.T) {
	r1, err := BuildReport("citycar", fullTables(), ModeAll)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := BuildReport("citycar", fullTables(), ModeAll)
	if err != nil {
		t.Fatal(err)
	}

	b1, err := json.Marshal(r1)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := json.Marshal(r2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b1, b2) {
		t.Error("identical inputs must produce byte-identical reports")
	}

	s := string(b1)
	if !strings.HasPrefix(s, `{"app_downloads":`) {
		t.Errorf("JSON must preserve catalog order: %s", s[:40])
	}
	// Undefined marshals as null, never 0.
	if !json.Valid(b1) {
		t.Error("report JSON is invalid")
	}
}

func TestReportUndefinedMarshalsNull(t *testing.T) {
	r, err := BuildReport("citycar", emptyTables(), ModeWarmup)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"average_duration_minutes":null`) {
		t.Errorf("undefined should be null: %s", b)
	}
}

func TestReportWriteText(t *testing.T) {
	r, err := BuildReport("citycar", fullTables(), ModeWarmup)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := r.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != len(r.Entries()) {
		t.Fatalf("text lines = %d, want %d", len(lines), len(r.Entries()))
	}
	if !strings.Contains(lines[0], "app_downloads") || !strings.Contains(lines[0], "= 3") {
		t.Errorf("line[0] = %q", lines[0])
	}
}

func TestValueMarshalling(t *testing.T) {
	cases := []struct {
		in   Value
		want string
	}{
		{Count(7), "7"},
		{Scalar(0.5), "0.5"},
		{CountAmount{Count: 1, Amount: 10}, `{"count":1,"amount":10}`},
		{Groups{{"ios", 1}, {"android", 2}}, `{"ios":1,"android":2}`},
		{Fields{{"total", Count(3)}, {"rate", Undefined}}, `{"total":3,"rate":null}`},
		{Records{{Key: "ios", Fields: Fields{{"downloads", Count(2)}}}}, `{"ios":{"downloads":2}}`},
		{Undefined, "null"},
	}
	for _, tc := range cases {
		b, err := json.Marshal(tc.in)
		if err != nil {
			t.Fatalf("marshal %v: %v", tc.in, err)
		}
		if string(b) != tc.want {
			t.Errorf("marshal %v = %s, want %s", tc.in, b, tc.want)
		}
	}
}

func TestKnownMode(t *testing.T) {
	for _, m := range []Mode{ModeWarmup, ModeFunnel, ModePlatform, ModeAge, ModeQuality, ModeSurge, ModeAll} {
		if !KnownMode(m) {
			t.Errorf("mode %q should be known", m)
		}
	}
	if KnownMode("weekly") {
		t.Error("unknown mode accepted")
	}
}
