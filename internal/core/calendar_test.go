package core

import (
	"testing"
	"time"
)

func TestWorkingDays(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		count int
		first string
		last  string
	}{
		{2026, time.July, 23, "01-07-2026", "31-07-2026"},
		{2024, time.February, 21, "01-02-2024", "29-02-2024"}, // leap February
		{2026, time.February, 20, "02-02-2026", "27-02-2026"}, // non-leap, starts on a Sunday
		{2026, time.March, 22, "02-03-2026", "31-03-2026"},
	}
	for _, tc := range cases {
		days := WorkingDays(tc.year, tc.month)
		if len(days) != tc.count {
			t.Errorf("WorkingDays(%d, %v) count = %d, want %d", tc.year, tc.month, len(days), tc.count)
		}
		if days[0] != tc.first || days[len(days)-1] != tc.last {
			t.Errorf("WorkingDays(%d, %v) span = %s..%s, want %s..%s",
				tc.year, tc.month, days[0], days[len(days)-1], tc.first, tc.last)
		}
	}
}

func TestWorkingDaysExcludesWeekendsAndAscends(t *testing.T) {
	for month := time.January; month <= time.December; month++ {
		days := WorkingDays(2026, month)
		var prev time.Time
		for _, key := range days {
			d, err := ParseDailyDate(key)
			if err != nil {
				t.Fatalf("month %v produced unparseable key %q", month, key)
			}
			if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
				t.Errorf("month %v contains weekend day %s", month, key)
			}
			if !prev.IsZero() && !d.After(prev) {
				t.Errorf("month %v not strictly ascending at %s", month, key)
			}
			prev = d
		}
	}
}

func TestTrailingMonthKeys(t *testing.T) {
	ref := time.Date(2026, time.February, 14, 0, 0, 0, 0, time.UTC)
	got := TrailingMonthKeys(ref, 3)
	want := []string{"2025-12", "2026-01", "2026-02"}
	if len(got) != len(want) {
		t.Fatalf("TrailingMonthKeys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TrailingMonthKeys = %v, want %v", got, want)
		}
	}
	if keys := TrailingMonthKeys(ref, 0); keys != nil {
		t.Fatalf("expected nil for zero months, got %v", keys)
	}
}
