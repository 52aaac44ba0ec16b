package core

import "testing"

// twoWeeks returns ten daily entries spanning the ISO weeks starting
// Monday 06-07-2026 and Monday 13-07-2026.
func twoWeeks() ChartSeries {
	dates := []string{
		"06-07-2026", "07-07-2026", "08-07-2026", "09-07-2026", "10-07-2026",
		"13-07-2026", "14-07-2026", "15-07-2026", "16-07-2026", "17-07-2026",
	}
	series := make(ChartSeries, len(dates))
	for i, d := range dates {
		series[i] = ChartEntry{Date: d, Target: float64(10 + i), Value: float64(i + 1)}
	}
	return series
}

func TestGroupByWeekBucketsAndSums(t *testing.T) {
	buckets := GroupByWeek(twoWeeks())
	if len(buckets) != 2 {
		t.Fatalf("bucket count = %d, want 2", len(buckets))
	}
	if buckets[0].Date != "2026-07-06" || buckets[1].Date != "2026-07-13" {
		t.Fatalf("bucket keys = %q, %q", buckets[0].Date, buckets[1].Date)
	}
	if buckets[0].Value != 15 || buckets[1].Value != 40 {
		t.Fatalf("bucket values = %g, %g, want 15, 40", buckets[0].Value, buckets[1].Value)
	}
}

func TestGroupByWeekTargetLastWins(t *testing.T) {
	buckets := GroupByWeek(twoWeeks())
	// Targets are 10..19 per entry; each week keeps its final day's target.
	if buckets[0].Target != 14 {
		t.Errorf("week 1 target = %g, want 14 (last day in week)", buckets[0].Target)
	}
	if buckets[1].Target != 19 {
		t.Errorf("week 2 target = %g, want 19 (last day in week)", buckets[1].Target)
	}
}

func TestGroupByWeekCommentJoining(t *testing.T) {
	series := ChartSeries{
		{Date: "06-07-2026", Comment: ""},
		{Date: "07-07-2026", Comment: "machine down"},
		{Date: "08-07-2026", Comment: ""},
		{Date: "09-07-2026", Comment: "recovered"},
	}
	buckets := GroupByWeek(series)
	if len(buckets) != 1 {
		t.Fatalf("bucket count = %d, want 1", len(buckets))
	}
	if got, want := buckets[0].Comment, "machine down\nrecovered"; got != want {
		t.Fatalf("joined comment = %q, want %q", got, want)
	}
}

func TestGroupByWeekSkipsUnparseableDates(t *testing.T) {
	series := ChartSeries{
		{Date: "06-07-2026", Value: 5},
		{Date: "not-a-date", Value: 1000},
		{Date: "2026-07-07", Value: 1000}, // wrong encoding, must be skipped
		{Date: "07-07-2026", Value: 7},
	}
	buckets := GroupByWeek(series)
	if len(buckets) != 1 {
		t.Fatalf("bucket count = %d, want 1", len(buckets))
	}
	if buckets[0].Value != 12 {
		t.Fatalf("bucket value = %g, want 12", buckets[0].Value)
	}
}

func TestGroupByWeekValueSumProperty(t *testing.T) {
	input := twoWeeks()
	var inSum float64
	for _, e := range input {
		inSum += e.Value
	}
	var outSum float64
	for _, b := range GroupByWeek(input) {
		outSum += b.Value
	}
	if inSum != outSum {
		t.Fatalf("value sum changed: in=%g out=%g", inSum, outSum)
	}
}

func TestGroupByWeekEmpty(t *testing.T) {
	if buckets := GroupByWeek(nil); len(buckets) != 0 {
		t.Fatalf("expected no buckets, got %v", buckets)
	}
}
