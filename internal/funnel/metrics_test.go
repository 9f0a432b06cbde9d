package funnel

import (
	"testing"
	"time"

	"funnel/internal/dataset"
)

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}

var (
	downloadCols = []dataset.Column{
		{Name: "app_download_key", Kind: dataset.KindText},
		{Name: "platform", Kind: dataset.KindText},
		{Name: "download_ts", Kind: dataset.KindTime},
	}
	signupCols = []dataset.Column{
		{Name: "user_id", Kind: dataset.KindText},
		{Name: "session_id", Kind: dataset.KindText},
		{Name: "signup_ts", Kind: dataset.KindTime},
		{Name: "age_range", Kind: dataset.KindText},
	}
	rideCols = []dataset.Column{
		{Name: "ride_id", Kind: dataset.KindText},
		{Name: "user_id", Kind: dataset.KindText},
		{Name: "driver_id", Kind: dataset.KindText},
		{Name: "request_ts", Kind: dataset.KindTime},
		{Name: "accept_ts", Kind: dataset.KindTime},
		{Name: "pickup_ts", Kind: dataset.KindTime},
		{Name: "dropoff_ts", Kind: dataset.KindTime},
		{Name: "cancel_ts", Kind: dataset.KindTime},
	}
	txCols = []dataset.Column{
		{Name: "transaction_id", Kind: dataset.KindText},
		{Name: "ride_id", Kind: dataset.KindText},
		{Name: "purchase_amount_usd", Kind: dataset.KindFloat},
		{Name: "charge_status", Kind: dataset.KindText},
		{Name: "transaction_ts", Kind: dataset.KindTime},
	}
	reviewCols = []dataset.Column{
		{Name: "review_id", Kind: dataset.KindText},
		{Name: "ride_id", Kind: dataset.KindText},
		{Name: "user_id", Kind: dataset.KindText},
		{Name: "driver_id", Kind: dataset.KindText},
		{Name: "rating", Kind: dataset.KindFloat},
		{Name: "review", Kind: dataset.KindText},
	}
)

func build(name string, cols []dataset.Column, rows ...[]any) *dataset.Table {
	t := dataset.New(name, cols)
	for _, r := range rows {
		t.AppendRow(r)
	}
	return t
}

// emptyTables returns all five datasets with full schemas and no rows.
func emptyTables() Tables {
	return Tables{
		Downloads:    build("app_downloads", downloadCols),
		Signups:      build("signups", signupCols),
		Rides:        build("ride_requests", rideCols),
		Transactions: build("transactions", txCols),
		Reviews:      build("reviews", reviewCols),
	}
}

// ride builds a ride_requests row; zero times mean absent.
func ride(id, user string, req, acc, pick, drop, canc time.Time) []any {
	row := []any{id, user, "d-" + id, nil, nil, nil, nil, nil}
	for i, t := range []time.Time{req, acc, pick, drop, canc} {
		if !t.IsZero() {
			row[3+i] = t
		}
	}
	return row
}

var none time.Time

func TestCompletedRides(t *testing.T) {
	tb := emptyTables()
	tb.Rides = build("ride_requests", rideCols,
		// completed
		ride("r1", "u1", ts("2021-05-01 09:00:00"), ts("2021-05-01 09:01:00"),
			ts("2021-05-01 09:10:00"), ts("2021-05-01 09:40:00"), none),
		// cancelled after dropoff recorded: still not completed
		ride("r2", "u2", ts("2021-05-01 10:00:00"), ts("2021-05-01 10:01:00"),
			ts("2021-05-01 10:10:00"), ts("2021-05-01 10:40:00"), ts("2021-05-01 10:41:00")),
		// never picked up
		ride("r3", "u3", ts("2021-05-01 11:00:00"), none, none, none, none),
	)

	v, err := CompletedRides(tb)
	if err != nil {
		t.Fatal(err)
	}
	if v != Count(1) {
		t.Errorf("completed_rides = %v, want 1", v)
	}

	acc, _ := AcceptedRides(tb)
	if acc != Count(2) {
		t.Errorf("accepted_rides = %v, want 2", acc)
	}
}

func TestAverageDurationMinutes(t *testing.T) {
	tb := emptyTables()
	tb.Rides = build("ride_requests", rideCols,
		ride("r1", "u1", none, none, ts("2021-05-01 09:00:00"), ts("2021-05-01 09:30:00"), none),
		ride("r2", "u2", none, none, ts("2021-05-01 10:00:00"), ts("2021-05-01 10:10:00"), none),
		// cancelled: excluded even though both timestamps exist
		ride("r3", "u3", none, none, ts("2021-05-01 11:00:00"), ts("2021-05-01 12:00:00"), ts("2021-05-01 11:05:00")),
	)

	v, err := AverageDurationMinutes(tb)
	if err != nil {
		t.Fatal(err)
	}
	if v != Scalar(20) {
		t.Errorf("average_duration_minutes = %v, want 20", v)
	}
}

func TestAverageDurationUndefinedOnEmptyRides(t *testing.T) {
	tb := emptyTables()

	v, err := AverageDurationMinutes(tb)
	if err != nil {
		t.Fatal(err)
	}
	if v != Undefined {
		t.Errorf("average_duration_minutes over zero rides = %v, want undefined", v)
	}
	if c, _ := CompletedRides(tb); c != Count(0) {
		t.Errorf("completed_rides = %v, want 0", c)
	}
	if c, _ := AcceptedRides(tb); c != Count(0) {
		t.Errorf("accepted_rides = %v, want 0", c)
	}
}

func TestChargedRidesAndRevenue(t *testing.T) {
	tb := emptyTables()
	tb.Transactions = build("transactions", txCols,
		[]any{"t1", "r1", 10.0, "Approved", nil},
		[]any{"t2", "r2", 5.0, "Declined", nil},
	)

	v, err := ChargedRidesAndRevenue(tb)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := v.(CountAmount)
	if !ok {
		t.Fatalf("value type = %T", v)
	}
	if got.Count != 1 || got.Amount != 10.0 {
		t.Errorf("charged_rides_and_revenue = %+v, want (1, 10.0)", got)
	}
}

func TestRequestsPerPlatformScenario(t *testing.T) {
	// Two downloads, one signup referencing d1, one completed ride for that
	// signup's user.
	tb := emptyTables()
	tb.Downloads = build("app_downloads", downloadCols,
		[]any{"d1", "ios", nil},
		[]any{"d2", "android", nil},
	)
	tb.Signups = build("signups", signupCols,
		[]any{"u1", "d1", nil, "18-24"},
	)
	tb.Rides = build("ride_requests", rideCols,
		ride("r1", "u1", none, none, none, ts("2021-05-01 09:40:00"), none),
	)

	v, err := RequestsPerPlatform(tb)
	if err != nil {
		t.Fatal(err)
	}
	g, ok := v.(Groups)
	if !ok {
		t.Fatalf("value type = %T", v)
	}
	if len(g) != 1 || g[0].Key != "ios" || g[0].Count != 1 {
		t.Errorf("requests_per_platform = %v, want {ios: 1}", g)
	}

	if c, _ := CompletedRides(tb); c != Count(1) {
		t.Errorf("completed_rides = %v, want 1", c)
	}
	d, _ := DropoffSignupToRequest(tb)
	if d != Scalar(0) {
		t.Errorf("dropoff_signup_to_request = %v, want 0.0", d)
	}
}

func TestDropoffSignupToRequest(t *testing.T) {
	tb := emptyTables()
	tb.Signups = build("signups", signupCols,
		[]any{"u1", "d1", nil, nil},
		[]any{"u2", "d2", nil, nil},
		[]any{"u3", "d3", nil, nil},
	)
	tb.Rides = build("ride_requests", rideCols,
		ride("r1", "u1", ts("2021-05-01 09:00:00"), none, none, none, none),
	)

	v, err := DropoffSignupToRequest(tb)
	if err != nil {
		t.Fatal(err)
	}
	got := float64(v.(Scalar))
	want := 2.0 / 3.0
	if got < want-1e-9 || got > want+1e-9 {
		t.Errorf("dropoff_signup_to_request = %v, want %v", got, want)
	}
}

func TestDropoffUndefinedOnZeroSignups(t *testing.T) {
	tb := emptyTables()

	v, err := DropoffSignupToRequest(tb)
	if err != nil {
		t.Fatal(err)
	}
	if v != Undefined {
		t.Errorf("dropoff with zero signups = %v, want undefined", v)
	}
}

func TestRideRequestsAndUniqueUsers(t *testing.T) {
	tb := emptyTables()
	tb.Rides = build("ride_requests", rideCols,
		ride("r1", "u1", none, none, none, none, none),
		ride("r2", "u1", none, none, none, none, none),
		ride("r3", "u2", none, none, none, none, none),
	)

	v, err := RideRequestsAndUniqueUsers(tb)
	if err != nil {
		t.Fatal(err)
	}
	f := v.(Fields)
	if f[0].Name != "total" || f[0].Value != Count(3) {
		t.Errorf("total = %v", f[0])
	}
	if f[1].Name != "unique_users" || f[1].Value != Count(2) {
		t.Errorf("unique_users = %v", f[1])
	}
}

func TestCompletedNeverExceedsRequests(t *testing.T) {
	tb := emptyTables()
	tb.Rides = build("ride_requests", rideCols,
		ride("r1", "u1", ts("2021-05-01 09:00:00"), ts("2021-05-01 09:01:00"),
			ts("2021-05-01 09:05:00"), ts("2021-05-01 09:30:00"), none),
		ride("r2", "u2", ts("2021-05-01 09:00:00"), ts("2021-05-01 09:02:00"), none, none, none),
		ride("r3", "u3", ts("2021-05-01 09:00:00"), none, none, none, none),
	)

	total, _ := RideRequestCount(tb)
	comp, _ := CompletedRides(tb)
	acc, _ := AcceptedRides(tb)
	if int(comp.(Count)) > int(total.(Count)) {
		t.Errorf("completed %v > requests %v", comp, total)
	}
	if int(acc.(Count)) > int(total.(Count)) {
		t.Errorf("accepted %v > requests %v", acc, total)
	}
}
