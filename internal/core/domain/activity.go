package domain

import "time"

// TimeWindow is a reporting period for activity statistics.
type TimeWindow string

const (
	WindowDay   TimeWindow = "24h"
	WindowWeek  TimeWindow = "7d"
	WindowMonth TimeWindow = "30d"
	WindowYTD   TimeWindow = "ytd"
)

// Windows lists every reporting period, in ascending length.
func Windows() []TimeWindow {
	return []TimeWindow{WindowDay, WindowWeek, WindowMonth, WindowYTD}
}

// Start returns the beginning of the window relative to now.
func (w TimeWindow) Start(now time.Time) time.Time {
	switch w {
	case WindowDay:
		return now.Add(-24 * time.Hour)
	case WindowWeek:
		return now.AddDate(0, 0, -7)
	case WindowMonth:
		return now.AddDate(0, 0, -30)
	case WindowYTD:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	}
	return now
}

// UserOp is one user operation reported by the activity API.
type UserOp struct {
	Sender    string    `json:"sender"`
	GasUsed   uint64    `json:"gas_used"`
	Timestamp time.Time `json:"timestamp"`
}

// Account is one smart account reported by the activity API.
type Account struct {
	Address   string     `json:"address"`
	CreatedAt *time.Time `json:"creation_timestamp,omitempty"`
}

// ActivityStats is the aggregated view served over the read API.
// Stats maps a metric name to its per-window values.
type ActivityStats struct {
	Stats          map[string]map[TimeWindow]uint64 `json:"stats"`
	RecentAccounts []Account                        `json:"recent_accounts"`
	RefreshedAt    time.Time                        `json:"refreshed_at"`
}

// Metric names used as keys in ActivityStats.Stats.
const (
	StatUserOps        = "user_ops"
	StatGasUsed        = "gas_used"
	StatUniqueAccounts = "unique_active_accounts"
)
