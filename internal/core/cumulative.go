package core

// ToCumulative derives a running-total series: output entry i carries the
// sum of input values 0..i, with date, target and comment copied verbatim.
// Input order is preserved, never re-sorted; cumulative sums are
// order-sensitive, so callers must pass a chronologically sorted series.
func ToCumulative(entries ChartSeries) ChartSeries {
	series := make(ChartSeries, 0, len(entries))
	var running float64
	for _, e := range entries {
		running += e.Value
		series = append(series, ChartEntry{
			Date:    e.Date,
			Target:  e.Target,
			Value:   running,
			Comment: e.Comment,
		})
	}
	return series
}
