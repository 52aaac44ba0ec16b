package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"leandash/internal/core"
	"leandash/internal/storage"
)

type upsertCall struct {
	chartID int64
	horizon core.Horizon
	data    core.ChartEntry
}

type fakeStore struct {
	charts  map[int64]storage.Chart
	bundles map[int64]storage.Bundle
	entries map[string]core.ChartSeries // keyed "<chartID>/<horizon>"

	upserts   []upsertCall
	upsertErr error
}

func entriesKey(chartID int64, horizon core.Horizon) string {
	return fmt.Sprintf("%d/%s", chartID, horizon)
}

func (f *fakeStore) GetChart(_ context.Context, id int64) (storage.Chart, error) {
	c, ok := f.charts[id]
	if !ok {
		return storage.Chart{}, fmt.Errorf("chart %d: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (f *fakeStore) GetBundle(_ context.Context, id int64) (storage.Bundle, error) {
	b, ok := f.bundles[id]
	if !ok {
		return storage.Bundle{}, fmt.Errorf("bundle %d: %w", id, storage.ErrNotFound)
	}
	return b, nil
}

func (f *fakeStore) ListChartsByBundle(_ context.Context, bundleID int64) ([]storage.Chart, error) {
	var out []storage.Chart
	for _, c := range f.charts {
		if c.BundleID == bundleID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListEntries(_ context.Context, chartID int64, horizon core.Horizon, month string) (core.ChartSeries, error) {
	all := f.entries[entriesKey(chartID, horizon)]
	if month == "" {
		return all, nil
	}
	ym, err := core.ParseMonthKey(month)
	if err != nil {
		return nil, err
	}
	suffix := fmt.Sprintf("-%02d-%04d", int(ym.Month()), ym.Year())
	var out core.ChartSeries
	for _, e := range all {
		if len(e.Date) >= len(suffix) && e.Date[len(e.Date)-len(suffix):] == suffix {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertEntry(_ context.Context, chartID int64, horizon core.Horizon, data core.ChartEntry) (storage.Entry, error) {
	if f.upsertErr != nil {
		return storage.Entry{}, f.upsertErr
	}
	f.upserts = append(f.upserts, upsertCall{chartID: chartID, horizon: horizon, data: data})
	return storage.Entry{
		ID:      int64(len(f.upserts)),
		ChartID: chartID,
		Horizon: horizon,
		Data:    data,
		Version: 1,
	}, nil
}

type publishCall struct {
	chartID int64
	horizon string
	date    string
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (f *fakePublisher) PublishEntrySync(_ context.Context, chartID int64, horizon, date string, _ int64) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, publishCall{chartID: chartID, horizon: horizon, date: date})
	return nil
}

func dailyChart(id int64, cfg core.ChartConfig) storage.Chart {
	return storage.Chart{ID: id, BundleID: 1, Name: fmt.Sprintf("chart-%d", id), Config: cfg}
}

func newTestService(store *fakeStore, pub *fakePublisher) *ChartService {
	var p Publisher
	if pub != nil {
		p = pub
	}
	svc := NewChartService(store, p)
	svc.now = func() time.Time { return time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestChartService_MonthSeries(t *testing.T) {
	store := &fakeStore{
		charts: map[int64]storage.Chart{
			7: dailyChart(7, core.ChartConfig{Periodicity: core.Daily, ShortTarget: 8, DistributionMode: core.Flat}),
		},
		entries: map[string]core.ChartSeries{
			entriesKey(7, core.ShortTerm): {
				{Date: "01-07-2026", Target: 8, Value: 5, Comment: "slow"},
				{Date: "15-08-2026", Target: 8, Value: 9}, // other month, filtered out
			},
		},
	}
	svc := newTestService(store, nil)

	res, err := svc.MonthSeries(context.Background(), 7, 2026, time.July)
	if err != nil {
		t.Fatalf("MonthSeries() error = %v", err)
	}

	if res.Kind != "standard" {
		t.Errorf("Kind = %q, want standard", res.Kind)
	}
	if res.Month != "2026-07" {
		t.Errorf("Month = %q, want 2026-07", res.Month)
	}
	// July 2026 has 23 working days.
	if len(res.Entries) != 23 {
		t.Fatalf("len(Entries) = %d, want 23", len(res.Entries))
	}
	if len(res.Labels) != 23 {
		t.Fatalf("len(Labels) = %d, want 23", len(res.Labels))
	}
	if res.Entries[0].Value != 5 || res.Entries[0].Comment != "slow" {
		t.Errorf("Entries[0] = %+v, want stored observation", res.Entries[0])
	}
	// Gap-filled slot carries the default target and zero value.
	if res.Entries[1].Target != 8 || res.Entries[1].Value != 0 {
		t.Errorf("Entries[1] = %+v, want synthesized slot", res.Entries[1])
	}
	if res.Labels[0] != "Wed\n01" {
		t.Errorf("Labels[0] = %q, want Wed\\n01", res.Labels[0])
	}
}

func TestChartService_MonthSeries_WeeklyKind(t *testing.T) {
	store := &fakeStore{
		charts: map[int64]storage.Chart{
			7: dailyChart(7, core.ChartConfig{Periodicity: core.Weekly, DistributionMode: core.Flat}),
		},
		entries: map[string]core.ChartSeries{},
	}
	svc := newTestService(store, nil)

	res, err := svc.MonthSeries(context.Background(), 7, 2026, time.July)
	if err != nil {
		t.Fatalf("MonthSeries() error = %v", err)
	}

	// July 2026 spans five ISO weeks.
	if len(res.Entries) != 5 {
		t.Fatalf("len(Entries) = %d, want 5", len(res.Entries))
	}
	if res.Kind != "weekly" {
		t.Errorf("Kind = %q, want weekly", res.Kind)
	}
	if res.Labels[0] != "W27\n26" {
		t.Errorf("Labels[0] = %q, want W27\\n26", res.Labels[0])
	}
}

func TestChartService_MonthSeries_ChartNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{charts: map[int64]storage.Chart{}}, nil)

	_, err := svc.MonthSeries(context.Background(), 99, 2026, time.July)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("MonthSeries() error = %v, want ErrNotFound", err)
	}
}

func TestChartService_LongTermSeries_Fallback(t *testing.T) {
	store := &fakeStore{
		charts: map[int64]storage.Chart{
			7: dailyChart(7, core.ChartConfig{Periodicity: core.Daily, LongTarget: 120, DistributionMode: core.Flat}),
		},
		entries: map[string]core.ChartSeries{},
	}
	svc := newTestService(store, nil)

	res, err := svc.LongTermSeries(context.Background(), 7)
	if err != nil {
		t.Fatalf("LongTermSeries() error = %v", err)
	}

	want := []string{"2026-05", "2026-06", "2026-07"}
	if len(res.Entries) != len(want) {
		t.Fatalf("len(Entries) = %d, want %d", len(res.Entries), len(want))
	}
	for i, e := range res.Entries {
		if e.Date != want[i] {
			t.Errorf("Entries[%d].Date = %q, want %q", i, e.Date, want[i])
		}
		if e.Target != 0 || e.Value != 0 || e.Comment != "" {
			t.Errorf("Entries[%d] = %+v, want zeroed placeholder", i, e)
		}
	}
	if res.Labels[2] != "Jul.\n26" {
		t.Errorf("Labels[2] = %q, want Jul.\\n26", res.Labels[2])
	}
}

func TestChartService_LongTermSeries_SortedAndCumulative(t *testing.T) {
	store := &fakeStore{
		charts: map[int64]storage.Chart{
			7: dailyChart(7, core.ChartConfig{Periodicity: core.Daily, IsCumulative: true, DistributionMode: core.Flat}),
		},
		entries: map[string]core.ChartSeries{
			entriesKey(7, core.LongTerm): {
				{Date: "2026-07", Value: 30},
				{Date: "2026-05", Value: 10},
				{Date: "2026-06", Value: 20},
			},
		},
	}
	svc := newTestService(store, nil)

	res, err := svc.LongTermSeries(context.Background(), 7)
	if err != nil {
		t.Fatalf("LongTermSeries() error = %v", err)
	}

	if res.Kind != "cumulative" {
		t.Errorf("Kind = %q, want cumulative", res.Kind)
	}
	wantValues := []float64{10, 30, 60}
	for i, e := range res.Entries {
		if e.Value != wantValues[i] {
			t.Errorf("Entries[%d].Value = %g, want %g", i, e.Value, wantValues[i])
		}
	}
	if res.Entries[0].Date != "2026-05" {
		t.Errorf("Entries[0].Date = %q, want 2026-05", res.Entries[0].Date)
	}
}

func TestChartService_UpdateEntry(t *testing.T) {
	min, max := 0.0, 10.0
	store := &fakeStore{
		charts: map[int64]storage.Chart{
			7: dailyChart(7, core.ChartConfig{
				Periodicity:      core.Daily,
				NbDecimal:        1,
				DistributionMode: core.Flat,
				Min:              &min,
				Max:              &max,
			}),
		},
	}
	pub := &fakePublisher{}
	svc := newTestService(store, pub)

	t.Run("rounds and publishes", func(t *testing.T) {
		saved, err := svc.UpdateEntry(context.Background(), 7, core.ShortTerm, core.ChartEntry{
			Date: "06-07-2026", Target: 8.44, Value: 5.67, Comment: "ok",
		})
		if err != nil {
			t.Fatalf("UpdateEntry() error = %v", err)
		}
		if saved.Data.Value != 5.7 || saved.Data.Target != 8.4 {
			t.Errorf("saved = %+v, want value 5.7 target 8.4", saved.Data)
		}
		if len(pub.calls) != 1 || pub.calls[0].date != "06-07-2026" {
			t.Errorf("publish calls = %+v, want one for 06-07-2026", pub.calls)
		}
	})

	t.Run("rejects out of bounds value", func(t *testing.T) {
		_, err := svc.UpdateEntry(context.Background(), 7, core.ShortTerm, core.ChartEntry{
			Date: "06-07-2026", Value: 11,
		})
		if err == nil {
			t.Fatal("UpdateEntry() should reject value above max")
		}
	})

	t.Run("rejects malformed date", func(t *testing.T) {
		_, err := svc.UpdateEntry(context.Background(), 7, core.ShortTerm, core.ChartEntry{
			Date: "2026-07-06", Value: 5,
		})
		if !errors.Is(err, core.ErrInvalidDate) {
			t.Errorf("UpdateEntry() error = %v, want ErrInvalidDate", err)
		}
	})

	t.Run("long horizon takes month keys", func(t *testing.T) {
		saved, err := svc.UpdateEntry(context.Background(), 7, core.LongTerm, core.ChartEntry{
			Date: "2026-07", Value: 9,
		})
		if err != nil {
			t.Fatalf("UpdateEntry() error = %v", err)
		}
		if saved.Data.Date != "2026-07" {
			t.Errorf("saved date = %q, want 2026-07", saved.Data.Date)
		}
	})
}

func TestChartService_UpdateEntry_PublishFailureIsNonFatal(t *testing.T) {
	store := &fakeStore{
		charts: map[int64]storage.Chart{
			7: dailyChart(7, core.ChartConfig{Periodicity: core.Daily, DistributionMode: core.Flat}),
		},
	}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(store, pub)

	if _, err := svc.UpdateEntry(context.Background(), 7, core.ShortTerm, core.ChartEntry{
		Date: "06-07-2026", Value: 3,
	}); err != nil {
		t.Fatalf("UpdateEntry() error = %v, want nil despite publish failure", err)
	}
	if len(store.upserts) != 1 {
		t.Errorf("upserts = %d, want 1", len(store.upserts))
	}
}

func TestChartService_DistributeTargets_Daily(t *testing.T) {
	store := &fakeStore{
		charts: map[int64]storage.Chart{
			7: dailyChart(7, core.ChartConfig{Periodicity: core.Daily, DistributionMode: core.Flat}),
		},
		entries: map[string]core.ChartSeries{
			entriesKey(7, core.ShortTerm): {
				{Date: "02-02-2026", Value: 4, Comment: "kept"},
			},
		},
	}
	svc := newTestService(store, nil)

	// February 2026 has 20 working days.
	out, err := svc.DistributeTargets(context.Background(), 7, core.ShortTerm, "2026-02", 100)
	if err != nil {
		t.Fatalf("DistributeTargets() error = %v", err)
	}
	if len(out) != 20 {
		t.Fatalf("len(out) = %d, want 20", len(out))
	}
	for i, e := range out {
		if e.Target != 100 {
			t.Errorf("out[%d].Target = %g, want 100 (flat)", i, e.Target)
		}
	}
	// Existing observation on 02-02 keeps its value and comment.
	if out[0].Date != "02-02-2026" || out[0].Value != 4 || out[0].Comment != "kept" {
		t.Errorf("out[0] = %+v, want preserved value and comment", out[0])
	}
}

func TestChartService_DistributeTargets_WeeklyBurnup(t *testing.T) {
	store := &fakeStore{
		charts: map[int64]storage.Chart{
			7: dailyChart(7, core.ChartConfig{Periodicity: core.Weekly, DistributionMode: core.BurnUp}),
		},
		entries: map[string]core.ChartSeries{},
	}
	svc := newTestService(store, nil)

	out, err := svc.DistributeTargets(context.Background(), 7, core.ShortTerm, "2026-07", 100)
	if err != nil {
		t.Fatalf("DistributeTargets() error = %v", err)
	}

	wantDates := []string{"01-07-2026", "06-07-2026", "13-07-2026", "20-07-2026", "27-07-2026"}
	wantTargets := []float64{20, 40, 60, 80, 100}
	if len(out) != len(wantDates) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(wantDates))
	}
	for i := range out {
		if out[i].Date != wantDates[i] || out[i].Target != wantTargets[i] {
			t.Errorf("out[%d] = %+v, want date %s target %g", i, out[i], wantDates[i], wantTargets[i])
		}
	}
}

func TestChartService_DistributeTargets_BadMonth(t *testing.T) {
	store := &fakeStore{
		charts: map[int64]storage.Chart{
			7: dailyChart(7, core.ChartConfig{Periodicity: core.Daily, DistributionMode: core.Flat}),
		},
	}
	svc := newTestService(store, nil)

	_, err := svc.DistributeTargets(context.Background(), 7, core.ShortTerm, "July 2026", 100)
	if !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("DistributeTargets() error = %v, want ErrInvalidDate", err)
	}
}

func TestChartService_BundleSeries(t *testing.T) {
	store := &fakeStore{
		charts: map[int64]storage.Chart{
			1: dailyChart(1, core.ChartConfig{Periodicity: core.Daily, DistributionMode: core.Flat}),
			2: dailyChart(2, core.ChartConfig{Periodicity: core.Weekly, DistributionMode: core.Flat}),
		},
		bundles: map[int64]storage.Bundle{1: {ID: 1, TeamID: 1, Name: "delivery"}},
		entries: map[string]core.ChartSeries{},
	}
	svc := newTestService(store, nil)

	results, err := svc.BundleSeries(context.Background(), 1, 2026, time.July)
	if err != nil {
		t.Fatalf("BundleSeries() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	kinds := map[string]int{}
	for _, r := range results {
		kinds[r.Kind]++
	}
	if kinds["standard"] != 1 || kinds["weekly"] != 1 {
		t.Errorf("kinds = %v, want one standard and one weekly", kinds)
	}
}

func TestChartService_BundleSeries_BundleNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{bundles: map[int64]storage.Bundle{}}, nil)

	_, err := svc.BundleSeries(context.Background(), 9, 2026, time.July)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("BundleSeries() error = %v, want ErrNotFound", err)
	}
}
