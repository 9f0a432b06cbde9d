package funnel

import (
	"sort"

	"funnel/internal/dataset"
	"funnel/internal/join"
)

// Tables holds the five loaded datasets, read-only, shared by every metric.
type Tables struct {
	Downloads    *dataset.Table
	Signups      *dataset.Table
	Rides        *dataset.Table
	Transactions *dataset.Table
	Reviews      *dataset.Table
}

// completed reports whether ride row i finished: dropoff recorded and no
// cancellation. A ride is never both completed and cancelled.
func completed(rides *dataset.Table, i int) bool {
	if _, ok := rides.Time(i, "dropoff_ts"); !ok {
		return false
	}
	_, cancelled := rides.Time(i, "cancel_ts")
	return !cancelled
}

// AppDownloadCount is the raw row count of the downloads table.
func AppDownloadCount(t Tables) (Value, error) {
	return Count(t.Downloads.Len()), nil
}

// SignupCount is the raw row count of the signups table.
func SignupCount(t Tables) (Value, error) {
	return Count(t.Signups.Len()), nil
}

// RideRequestCount is the raw row count of the ride requests table.
func RideRequestCount(t Tables) (Value, error) {
	return Count(t.Rides.Len()), nil
}

// CompletedRides counts rides with a dropoff and no cancellation.
func CompletedRides(t Tables) (Value, error) {
	n := 0
	for i := 0; i < t.Rides.Len(); i++ {
		if completed(t.Rides, i) {
			n++
		}
	}
	return Count(n), nil
}

// RideRequestsAndUniqueUsers pairs the total request count with the number
// of distinct requesting users.
func RideRequestsAndUniqueUsers(t Tables) (Value, error) {
	users := make(map[string]struct{})
	for i := 0; i < t.Rides.Len(); i++ {
		if u, ok := t.Rides.Str(i, "user_id"); ok {
			users[u] = struct{}{}
		}
	}
	return Fields{
		{Name: "total", Value: Count(t.Rides.Len())},
		{Name: "unique_users", Value: Count(len(users))},
	}, nil
}

// AverageDurationMinutes is the mean pickup-to-dropoff duration over
// completed rides, in minutes. Undefined when there are no completed rides
// with both timestamps.
func AverageDurationMinutes(t Tables) (Value, error) {
	var sum float64
	var n int
	for i := 0; i < t.Rides.Len(); i++ {
		if !completed(t.Rides, i) {
			continue
		}
		pick, ok := t.Rides.Time(i, "pickup_ts")
		if !ok {
			continue
		}
		drop, _ := t.Rides.Time(i, "dropoff_ts")
		sum += drop.Sub(pick).Minutes()
		n++
	}
	if n == 0 {
		return Undefined, nil
	}
	return Scalar(sum / float64(n)), nil
}

// AcceptedRides counts rides a driver accepted.
func AcceptedRides(t Tables) (Value, error) {
	n := 0
	for i := 0; i < t.Rides.Len(); i++ {
		if _, ok := t.Rides.Time(i, "accept_ts"); ok {
			n++
		}
	}
	return Count(n), nil
}

// chargeApproved is the charge_status value that marks a charged ride.
const chargeApproved = "Approved"

// ChargedRidesAndRevenue counts approved transactions and sums their
// purchase amounts.
func ChargedRidesAndRevenue(t Tables) (Value, error) {
	var n int
	var amount float64
	for i := 0; i < t.Transactions.Len(); i++ {
		if status, ok := t.Transactions.Str(i, "charge_status"); !ok || status != chargeApproved {
			continue
		}
		n++
		if a, ok := t.Transactions.Float(i, "purchase_amount_usd"); ok {
			amount += a
		}
	}
	return CountAmount{Count: n, Amount: amount}, nil
}

// RequestsPerPlatform inner-joins downloads through signups to requests and
// counts the surviving rows per platform. Platforms with zero rows are
// omitted (platform is free text in the source, not a declared enum).
// Groups are ordered by count descending, then platform ascending.
func RequestsPerPlatform(t Tables) (Value, error) {
	ds, err := join.Join(t.Downloads, t.Signups, "app_download_key", "session_id", join.Inner)
	if err != nil {
		return nil, err
	}
	dsr, err := join.Join(ds, t.Rides, "user_id", "user_id", join.Inner)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for i := 0; i < dsr.Len(); i++ {
		if p, ok := dsr.Str(i, "platform"); ok {
			counts[p]++
		}
	}
	return sortedGroups(counts, orderCountDesc), nil
}

// DropoffSignupToRequest is the share of signups with no ride request at
// all, computed via a left join counting unmatched rows. Undefined when
// there are zero signups.
func DropoffSignupToRequest(t Tables) (Value, error) {
	if t.Signups.Len() == 0 {
		return Undefined, nil
	}
	sr, err := join.Join(t.Signups, t.Rides, "user_id", "user_id", join.Left)
	if err != nil {
		return nil, err
	}
	// Signup user_id is a primary key, so an unmatched signup contributes
	// exactly one null-filled row.
	unmatched := 0
	for i := 0; i < sr.Len(); i++ {
		if _, ok := sr.Str(i, "ride_id"); !ok {
			unmatched++
		}
	}
	return Scalar(float64(unmatched) / float64(t.Signups.Len())), nil
}

type groupOrder int

const (
	orderCountDesc groupOrder = iota
	orderKeyAsc
)

// sortedGroups freezes a count map into deterministic Groups. Ties on count
// break by key ascending.
func sortedGroups(counts map[string]int, ord groupOrder) Groups {
	g := make(Groups, 0, len(counts))
	for k, n := range counts {
		g = append(g, Group{Key: k, Count: n})
	}
	sort.Slice(g, func(i, j int) bool {
		if ord == orderCountDesc && g[i].Count != g[j].Count {
			return g[i].Count > g[j].Count
		}
		return g[i].Key < g[j].Key
	})
	return g
}
