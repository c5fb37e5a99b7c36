package model

// Dashboard aggregates the admin overview.  Revenue counts paid bookings
// only.
type Dashboard struct {
	TotalBookings   int64        `json:"totalBookings"`
	TotalRevenue    float64      `json:"totalRevenue"`
	ActiveShowCount int64        `json:"activeShowCount"`
	ActiveShows     []ShowDetail `json:"activeShows"`
	TotalUser       int64        `json:"totalUser"`
}
