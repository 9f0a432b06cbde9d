package funnel

import (
	"funnel/internal/dataset"
	"funnel/internal/join"
)

// MasterView assembles the full funnel as one wide table: every download,
// left-joined through signup, ride request, transaction, and review. A user
// who never progressed past a stage keeps the row with later columns absent,
// which is exactly what the per-stage counts need.
//
// The reviews table shares user_id and driver_id with ride requests, so its
// copies surface as "reviews.user_id" / "reviews.driver_id".
func MasterView(t Tables) (*dataset.Table, error) {
	m, err := join.Join(t.Downloads, t.Signups, "app_download_key", "session_id", join.Left)
	if err != nil {
		return nil, err
	}
	m, err = join.Join(m, t.Rides, "user_id", "user_id", join.Left)
	if err != nil {
		return nil, err
	}
	m, err = join.Join(m, t.Transactions, "ride_id", "ride_id", join.Left)
	if err != nil {
		return nil, err
	}
	return join.Join(m, t.Reviews, "ride_id", "ride_id", join.Left)
}
