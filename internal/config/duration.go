// Package config resolves executor-scoped session settings: human
// durations, byte sizes, and the two-level executor config lookup.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrBadDuration is returned when a duration string does not match one
// of the recognized shapes.
var ErrBadDuration = errors.New("config: invalid duration")

var durationPattern = regexp.MustCompile(`^\s*(\d+)\s*([a-zA-Z]*)\s*$`)

// ParseDuration parses human duration strings of the shape <int><unit>
// where unit is one of ms, s, sec, m, min, h, d. Whitespace around the
// number and unit is tolerated. A bare integer is interpreted as
// milliseconds, matching TaskConfig fields that also accept a raw int.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}

	unit := m[2]
	switch unit {
	case "", "ms":
		return time.Duration(n) * time.Millisecond, nil
	case "s", "sec":
		return time.Duration(n) * time.Second, nil
	case "m", "min":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: unrecognized unit %q in %q", ErrBadDuration, unit, s)
	}
}

// ParseDurationOrMillis interprets v as either a duration string or a
// raw integer number of milliseconds, per TaskConfig fields that accept
// both (spec.md §4.1).
func ParseDurationOrMillis(v any) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case int:
		return time.Duration(t) * time.Millisecond, nil
	case int64:
		return time.Duration(t) * time.Millisecond, nil
	case float64:
		return time.Duration(t) * time.Millisecond, nil
	case string:
		return ParseDuration(t)
	default:
		return 0, fmt.Errorf("%w: unsupported value %v (%T)", ErrBadDuration, v, v)
	}
}

// FormatDuration renders d using the canonical unit that round-trips
// through ParseDuration without loss: the coarsest unit that evenly
// divides d, falling back to milliseconds.
func FormatDuration(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0 && d != 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0 && d != 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0 && d != 0:
		return fmt.Sprintf("%dmin", d/time.Minute)
	case d%time.Second == 0 && d != 0:
		return fmt.Sprintf("%dsec", d/time.Second)
	default:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
}
