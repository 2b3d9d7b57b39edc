package util

import (
    "strconv"
    "time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// LookbackFrom returns the start of a lookback window of n days ending at t.
func LookbackFrom(t time.Time, days int) time.Time {
    return t.AddDate(0, 0, -days)
}

// WeekdayMonday0 returns the day of week with Monday=0 .. Sunday=6.
func WeekdayMonday0(t time.Time) int {
    return (int(t.Weekday()) + 6) % 7
}

// QuarterOf returns the calendar quarter (1-4) of t.
func QuarterOf(t time.Time) int {
    return (int(t.Month())-1)/3 + 1
}
