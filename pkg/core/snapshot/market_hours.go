package snapshot

import "time"

// A-share trading session windows: 09:15-11:30 (including the opening
// auction) and 13:00-15:00, local exchange time, weekdays only.
var sessions = []struct {
	startHour, startMin int
	endHour, endMin     int
}{
	{9, 15, 11, 30},
	{13, 0, 15, 0},
}

// IsMarketOpen reports whether the A-share market is in session at t.
// The snapshot engine does not consult it: a snapshot cache miss always
// recomputes, and expired snapshots are not kept.
func IsMarketOpen(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	for _, s := range sessions {
		start := s.startHour*60 + s.startMin
		end := s.endHour*60 + s.endMin
		if minutes >= start && minutes <= end {
			return true
		}
	}
	return false
}
