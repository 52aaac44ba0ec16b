package core

import "time"

// WorkingDays generates the canonical x-axis for a daily chart: one
// dd-MM-yyyy key per Monday-to-Friday day of the given month, ascending.
// Weekends are excluded entirely. The calendar is regenerated per request
// rather than cached, so month and year boundaries (leap Februaries
// included) are always correct.
func WorkingDays(year int, month time.Month) []string {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	var days []string
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		days = append(days, d.Format(DailyDateLayout))
	}
	return days
}

// TrailingMonthKeys returns the yyyy-MM keys of the n months up to and
// including the month of ref, ascending. Used to synthesize a long-term
// series when a chart has no monthly entries yet.
func TrailingMonthKeys(ref time.Time, n int) []string {
	if n < 1 {
		return nil
	}
	keys := make([]string, 0, n)
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := n - 1; i >= 0; i-- {
		keys = append(keys, first.AddDate(0, -i, 0).Format(MonthKeyLayout))
	}
	return keys
}
