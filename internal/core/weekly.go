package core

// GroupByWeek buckets a daily dd-MM-yyyy series into ISO weeks. Bucket keys
// are the Monday week-start date in yyyy-MM-dd; emission order is first-seen
// order, which for a chronologically sorted input is ascending week start.
//
// Within a bucket, values are summed and non-empty comments are joined with
// newlines. The target is not summed: the last day processed for a week
// overwrites it, so the final day-in-week's target represents the week.
// Entries whose date does not parse are skipped and contribute nothing.
func GroupByWeek(entries ChartSeries) ChartSeries {
	var order []string
	buckets := make(map[string]*ChartEntry)

	for _, e := range entries {
		day, err := ParseDailyDate(e.Date)
		if err != nil {
			continue
		}
		key := WeekStart(day).Format(WeekKeyLayout)

		b, ok := buckets[key]
		if !ok {
			order = append(order, key)
			buckets[key] = &ChartEntry{
				Date:    key,
				Target:  e.Target,
				Value:   e.Value,
				Comment: e.Comment,
			}
			continue
		}
		b.Value += e.Value
		b.Target = e.Target
		if e.Comment != "" {
			if b.Comment == "" {
				b.Comment = e.Comment
			} else {
				b.Comment += "\n" + e.Comment
			}
		}
	}

	series := make(ChartSeries, 0, len(order))
	for _, key := range order {
		series = append(series, *buckets[key])
	}
	return series
}
