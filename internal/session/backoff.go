package session

import "time"

// ReconnectPolicy decides how long to wait before reconnect attempt n
// (1-based) and whether the connection should be reported as degraded.
// Policies never tell the manager to stop: the session keeps trying for as
// long as it is wanted, and degradation is the only exhaustion signal.
type ReconnectPolicy interface {
	Next(attempt int) (delay time.Duration, degraded bool)
}

// FixedIntervalPolicy retries on a constant interval. After Cap attempts it
// keeps retrying at the same pace but reports the link as degraded, which
// the UI shows as "disconnected" while non-chat controls stay usable.
type FixedIntervalPolicy struct {
	Interval time.Duration
	Cap      int
}

// Next implements ReconnectPolicy.
func (p FixedIntervalPolicy) Next(attempt int) (time.Duration, bool) {
	interval := p.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return interval, p.Cap > 0 && attempt > p.Cap
}
