package workflow

import "time"

// NextDeadline returns the first deadline at or after now on the grid
// prev + k*interval, with k >= 1.
func NextDeadline(prev, now time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return now
	}
	next := prev.Add(interval)
	if !next.Before(now) {
		return next
	}
	behind := now.Sub(next)
	steps := (behind + interval - 1) / interval
	return next.Add(steps * interval)
}
