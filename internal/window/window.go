// Package window contains the pure time-window arithmetic the rest of
// the engine is built on: "HH:MM" parsing, minute-of-day containment
// with midnight wraparound, and weekday gating for weekly alarms.
package window

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the local calendar date format used for completion
// tracking and horizon identifiers.
const DateFormat = "2006-01-02"

// ParseHHMM converts a zero-padded 24h "HH:MM" string to minutes since
// midnight (0–1439).
func ParseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("parse time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("parse hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("parse minute in %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("parse time %q: out of range", s)
	}
	return hour*60 + minute, nil
}

// FormatHHMM renders a time as a zero-padded "HH:MM" wall-clock string.
func FormatHHMM(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// LocalDate renders a time as "YYYY-MM-DD" in its own location.
func LocalDate(t time.Time) string {
	return t.Format(DateFormat)
}

// InWindow reports whether current falls inside [start, end], all given
// as "HH:MM". Both boundaries are inclusive. When end is numerically
// below start the window crosses midnight and membership becomes
// current >= start OR current <= end. Malformed times yield false.
func InWindow(current, start, end string) bool {
	cur, err := ParseHHMM(current)
	if err != nil {
		return false
	}
	s, err := ParseHHMM(start)
	if err != nil {
		return false
	}
	e, err := ParseHHMM(end)
	if err != nil {
		return false
	}

	if e < s {
		// Window crosses midnight, e.g. 22:00–06:00
		return cur >= s || cur <= e
	}
	return cur >= s && cur <= e
}
