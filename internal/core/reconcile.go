package core

// Reconcile merges sparse stored entries onto a generated calendar. The
// result has exactly one entry per calendar slot, in calendar order: a
// stored entry when one matches the date key, otherwise a synthesized gap
// entry with the chart's default target, a zero value and an empty comment.
// Zero-filled gaps keep the rendered series spanning the full period and
// distinguish "no data yet" from "reported zero".
//
// Stored entries whose date is not in the calendar (a weekend row persisted
// by an older bug, or a day outside the displayed month) are dropped.
func Reconcile(calendar []string, stored ChartSeries, defaultTarget float64) ChartSeries {
	byDate := make(map[string]ChartEntry, len(stored))
	for _, e := range stored {
		byDate[e.Date] = e
	}

	series := make(ChartSeries, 0, len(calendar))
	for _, date := range calendar {
		if e, ok := byDate[date]; ok {
			series = append(series, e)
			continue
		}
		series = append(series, ChartEntry{
			Date:    date,
			Target:  defaultTarget,
			Value:   0,
			Comment: "",
		})
	}
	return series
}
