package quota

import "time"

// DefaultDailyLimit is the number of outbound emails allowed per calendar
// day. Kept a little under the provider's hard cap of 100.
const DefaultDailyLimit = 95

// DayKeyLayout is the calendar-day key format used for counters.
const DayKeyLayout = "2006-01-02"

// Counter is one day's send tally.
type Counter struct {
	Day   string // DayKeyLayout-formatted date in the business timezone
	Count int
}

// DayKey returns the counter key for t in loc.
// PRE: loc is non-nil
// POST: Returns a stable calendar-day string regardless of t's zone
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayKeyLayout)
}

// Remaining returns how many sends are left under limit, never negative.
func (c Counter) Remaining(limit int) int {
	if c.Count >= limit {
		return 0
	}
	return limit - c.Count
}
