package events

import "time"

// Clock provides the time stamped onto log entries. It enables deterministic testing.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the local system time, so timestamps carry
// the user's UTC offset.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock implements Clock with a fixed time for testing.
type FixedClock struct {
	Time time.Time
}

// Now returns the fixed time.
func (c FixedClock) Now() time.Time {
	return c.Time
}

// FormatTimestamp renders t the way LogEntry.Timestamp expects.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
