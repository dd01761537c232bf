package timesync

import (
	"fmt"
	"time"
)

// Layout is the event timestamp format, YYYY-MM-DD HH:MM:SS.
const Layout = "2006-01-02 15:04:05"

// Clock supplies capture times.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return time.Time(c)
}

// Stamp picks the capture time for a session: observed when the host knows
// it, otherwise the clock's current time.
func Stamp(clock Clock, observed time.Time) time.Time {
	if !observed.IsZero() {
		return observed
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return clock.Now()
}

// Format renders t in the event layout, in local time.
func Format(t time.Time) string {
	return t.Local().Format(Layout)
}

// Parse reads a timestamp written by Format, in local time.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
