package stream

import "time"

// BackoffTable maps the consecutive failure count to the delay before
// the next reconnect attempt. Attempts beyond the last entry reuse it,
// so the final entry is the steady-state retry interval.
type BackoffTable []time.Duration

// DefaultBackoff returns the standard reconnect schedule.
func DefaultBackoff() BackoffTable {
	return BackoffTable{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
	}
}

// Delay returns the wait before reconnect attempt number attempt, where
// attempt 0 is the first retry after a drop. An empty table falls back
// to a one second delay.
func (b BackoffTable) Delay(attempt int) time.Duration {
	if len(b) == 0 {
		return time.Second
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(b) {
		attempt = len(b) - 1
	}
	return b[attempt]
}
