// Package core implements the chart-data pipeline: calendar generation,
// entry reconciliation, weekly aggregation, cumulative transforms and bulk
// target distribution. Every function here is pure and holds no state
// across calls; callers rebuild series from a fresh input snapshot each
// time data changes.
package core

import (
	"fmt"
	"strings"
	"time"
)

// Date layouts used across the dashboard. Daily entries use dd-MM-yyyy,
// long-term gap filling uses yyyy-MM month keys, and week buckets use
// yyyy-MM-dd Monday keys.
const (
	DailyDateLayout = "02-01-2006"
	MonthKeyLayout  = "2006-01"
	WeekKeyLayout   = "2006-01-02"
)

// ParseDailyDate parses a dd-MM-yyyy key into a calendar date. The string
// must split into exactly three numeric components forming a valid date;
// anything else returns a zero time and an error so callers can render a
// fallback label instead of crashing the view.
func ParseDailyDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, "-") != 2 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	t, err := time.Parse(DailyDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// ParseMonthKey parses a yyyy-MM key into the first day of that month.
func ParseMonthKey(s string) (time.Time, error) {
	t, err := time.Parse(MonthKeyLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatWeekdayShort renders the two-line header label for daily tables:
// three-letter weekday over two-digit day of month.
func FormatWeekdayShort(t time.Time) string {
	return t.Format("Mon") + "\n" + t.Format("02")
}

// FormatMonthShort renders the two-line header label for monthly columns:
// abbreviated month with a trailing dot over the two-digit year. It accepts
// either a yyyy-MM month key or a dd-MM-yyyy daily key.
func FormatMonthShort(key string) string {
	t, err := ParseMonthKey(key)
	if err != nil {
		t, err = ParseDailyDate(key)
	}
	if err != nil {
		return "invalid date"
	}
	return t.Format("Jan") + ".\n" + t.Format("06")
}

// ISOWeekNumber returns the ISO-8601 week number (1..53) of the date:
// weeks start on Monday and week 1 contains the year's first Thursday.
func ISOWeekNumber(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

// WeekStart returns the Monday of the week containing t, at midnight.
func WeekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return time.Date(t.Year(), t.Month(), t.Day()-(weekday-1), 0, 0, 0, 0, t.Location())
}
