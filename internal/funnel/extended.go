package funnel

import (
	"fmt"
	"sort"

	"funnel/internal/dataset"
)

// userSet collects distinct values of a string column, optionally filtered.
func userSet(t *dataset.Table, col string, keep func(i int) bool) map[string]struct{} {
	out := make(map[string]struct{})
	for i := 0; i < t.Len(); i++ {
		if keep != nil && !keep(i) {
			continue
		}
		if v, ok := t.Str(i, col); ok {
			out[v] = struct{}{}
		}
	}
	return out
}

// FunnelSteps counts unique actors per funnel stage over the master view:
// downloads by download key, every later stage by user. The stage order is
// the funnel order and is part of the output contract.
func FunnelSteps(t Tables) (Value, error) {
	m, err := MasterView(t)
	if err != nil {
		return nil, err
	}
	stages := Groups{
		{Key: "downloads", Count: len(userSet(m, "app_download_key", nil))},
		{Key: "signups", Count: len(userSet(m, "user_id", nil))},
		{Key: "requested", Count: len(userSet(m, "user_id", func(i int) bool {
			_, ok := m.Str(i, "ride_id")
			return ok
		}))},
		{Key: "accepted", Count: len(userSet(m, "user_id", func(i int) bool {
			_, ok := m.Time(i, "accept_ts")
			return ok
		}))},
		{Key: "completed", Count: len(userSet(m, "user_id", func(i int) bool {
			return completed(m, i)
		}))},
		{Key: "paid", Count: len(userSet(m, "user_id", func(i int) bool {
			s, ok := m.Str(i, "charge_status")
			return ok && s == chargeApproved
		}))},
		{Key: "reviewed", Count: len(userSet(m, "user_id", func(i int) bool {
			_, ok := m.Str(i, "review_id")
			return ok
		}))},
	}
	return stages, nil
}

// PlatformConversion breaks the funnel down per platform: distinct downloads,
// distinct completed rides, and the completion rate percent. Rate is
// Undefined for a platform with zero downloads. Platforms sort ascending.
func PlatformConversion(t Tables) (Value, error) {
	m, err := MasterView(t)
	if err != nil {
		return nil, err
	}
	type bucket struct {
		downloads      map[string]struct{}
		completedRides map[string]struct{}
	}
	byPlatform := make(map[string]*bucket)
	for i := 0; i < m.Len(); i++ {
		p, ok := m.Str(i, "platform")
		if !ok {
			continue
		}
		b := byPlatform[p]
		if b == nil {
			b = &bucket{
				downloads:      make(map[string]struct{}),
				completedRides: make(map[string]struct{}),
			}
			byPlatform[p] = b
		}
		if k, ok := m.Str(i, "app_download_key"); ok {
			b.downloads[k] = struct{}{}
		}
		if rid, ok := m.Str(i, "ride_id"); ok && completed(m, i) {
			b.completedRides[rid] = struct{}{}
		}
	}

	platforms := make([]string, 0, len(byPlatform))
	for p := range byPlatform {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	out := make(Records, 0, len(platforms))
	for _, p := range platforms {
		b := byPlatform[p]
		rate := Undefined
		if len(b.downloads) > 0 {
			rate = Scalar(100 * float64(len(b.completedRides)) / float64(len(b.downloads)))
		}
		out = append(out, Record{Key: p, Fields: Fields{
			{Name: "downloads", Value: Count(len(b.downloads))},
			{Name: "completed_rides", Value: Count(len(b.completedRides))},
			{Name: "conversion_pct", Value: rate},
		}})
	}
	return out, nil
}

// FunnelByAge reports unique signups, requesters, completers, and reviewers
// per age range. Rows without an age range are excluded; groups sort by age
// range ascending.
func FunnelByAge(t Tables) (Value, error) {
	m, err := MasterView(t)
	if err != nil {
		return nil, err
	}
	type bucket struct {
		signups, requesters, completers, reviewers map[string]struct{}
	}
	byAge := make(map[string]*bucket)
	for i := 0; i < m.Len(); i++ {
		age, ok := m.Str(i, "age_range")
		if !ok {
			continue
		}
		u, ok := m.Str(i, "user_id")
		if !ok {
			continue
		}
		b := byAge[age]
		if b == nil {
			b = &bucket{
				signups:    make(map[string]struct{}),
				requesters: make(map[string]struct{}),
				completers: make(map[string]struct{}),
				reviewers:  make(map[string]struct{}),
			}
			byAge[age] = b
		}
		b.signups[u] = struct{}{}
		if _, ok := m.Str(i, "ride_id"); ok {
			b.requesters[u] = struct{}{}
		}
		if completed(m, i) {
			b.completers[u] = struct{}{}
		}
		if _, ok := m.Str(i, "review_id"); ok {
			b.reviewers[u] = struct{}{}
		}
	}

	ages := make([]string, 0, len(byAge))
	for a := range byAge {
		ages = append(ages, a)
	}
	sort.Strings(ages)

	out := make(Records, 0, len(ages))
	for _, a := range ages {
		b := byAge[a]
		out = append(out, Record{Key: a, Fields: Fields{
			{Name: "signups", Value: Count(len(b.signups))},
			{Name: "requesters", Value: Count(len(b.requesters))},
			{Name: "completers", Value: Count(len(b.completers))},
			{Name: "reviewers", Value: Count(len(b.reviewers))},
		}})
	}
	return out, nil
}

// DurationQuality summarizes pickup-to-dropoff durations over every ride
// carrying both timestamps, cancelled or not: the outliers are the point.
// Undefined when no ride has both.
func DurationQuality(t Tables) (Value, error) {
	var (
		n        int
		sum      float64
		min, max float64
		over5h   int
		negative int
	)
	for i := 0; i < t.Rides.Len(); i++ {
		pick, ok := t.Rides.Time(i, "pickup_ts")
		if !ok {
			continue
		}
		drop, ok := t.Rides.Time(i, "dropoff_ts")
		if !ok {
			continue
		}
		d := drop.Sub(pick).Minutes()
		if n == 0 || d < min {
			min = d
		}
		if n == 0 || d > max {
			max = d
		}
		sum += d
		n++
		if d > 300 {
			over5h++
		}
		if d < 0 {
			negative++
		}
	}
	if n == 0 {
		return Undefined, nil
	}
	return Fields{
		{Name: "rides", Value: Count(n)},
		{Name: "min_minutes", Value: Scalar(min)},
		{Name: "mean_minutes", Value: Scalar(sum / float64(n))},
		{Name: "max_minutes", Value: Scalar(max)},
		{Name: "over_5h", Value: Count(over5h)},
		{Name: "negative", Value: Count(negative)},
	}, nil
}

// DropoffGap looks at rides a driver accepted that never completed: how many
// of those were explicitly cancelled. Cancel percentage is Undefined when no
// accepted ride is incomplete.
func DropoffGap(t Tables) (Value, error) {
	var incomplete, cancelled int
	for i := 0; i < t.Rides.Len(); i++ {
		if _, ok := t.Rides.Time(i, "accept_ts"); !ok {
			continue
		}
		if completed(t.Rides, i) {
			continue
		}
		incomplete++
		if _, ok := t.Rides.Time(i, "cancel_ts"); ok {
			cancelled++
		}
	}
	pct := Undefined
	if incomplete > 0 {
		pct = Scalar(100 * float64(cancelled) / float64(incomplete))
	}
	return Fields{
		{Name: "accepted_not_completed", Value: Count(incomplete)},
		{Name: "with_cancel", Value: Count(cancelled)},
		{Name: "cancel_pct", Value: pct},
	}, nil
}

// CancellationWait contrasts how long riders waited after acceptance: mean
// accept-to-pickup minutes on completed rides against mean accept-to-cancel
// minutes on cancelled ones, plus the share of cancellers who waited over
// ten minutes. Each component is Undefined over an empty population.
func CancellationWait(t Tables) (Value, error) {
	var (
		compSum     float64
		compN       int
		cancSum     float64
		cancN       int
		cancOverTen int
	)
	for i := 0; i < t.Rides.Len(); i++ {
		accept, ok := t.Rides.Time(i, "accept_ts")
		if !ok {
			continue
		}
		if completed(t.Rides, i) {
			if pick, ok := t.Rides.Time(i, "pickup_ts"); ok {
				compSum += pick.Sub(accept).Minutes()
				compN++
			}
			continue
		}
		if cancel, ok := t.Rides.Time(i, "cancel_ts"); ok {
			wait := cancel.Sub(accept).Minutes()
			cancSum += wait
			cancN++
			if wait > 10 {
				cancOverTen++
			}
		}
	}

	compWait := Undefined
	if compN > 0 {
		compWait = Scalar(compSum / float64(compN))
	}
	cancWait := Undefined
	overTen := Undefined
	if cancN > 0 {
		cancWait = Scalar(cancSum / float64(cancN))
		overTen = Scalar(100 * float64(cancOverTen) / float64(cancN))
	}
	return Fields{
		{Name: "completed_wait_minutes", Value: compWait},
		{Name: "cancelled_wait_minutes", Value: cancWait},
		{Name: "cancelled_over_10min_pct", Value: overTen},
	}, nil
}

// HourlyDemand buckets ride requests by hour of day, ascending. Hours with
// no requests are omitted.
func HourlyDemand(t Tables) (Value, error) {
	counts := make(map[string]int)
	for i := 0; i < t.Rides.Len(); i++ {
		if ts, ok := t.Rides.Time(i, "request_ts"); ok {
			counts[fmt.Sprintf("%02d", ts.Hour())]++
		}
	}
	return sortedGroups(counts, orderKeyAsc), nil
}

// CancellationsByHour buckets cancellations by the hour they happened,
// busiest first.
func CancellationsByHour(t Tables) (Value, error) {
	counts := make(map[string]int)
	for i := 0; i < t.Rides.Len(); i++ {
		if ts, ok := t.Rides.Time(i, "cancel_ts"); ok {
			counts[fmt.Sprintf("%02d", ts.Hour())]++
		}
	}
	return sortedGroups(counts, orderCountDesc), nil
}
