package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"leandash/internal/core"
	"leandash/internal/storage"
)

// Store is the persistence surface the chart service needs.
type Store interface {
	GetChart(ctx context.Context, id int64) (storage.Chart, error)
	GetBundle(ctx context.Context, id int64) (storage.Bundle, error)
	ListChartsByBundle(ctx context.Context, bundleID int64) ([]storage.Chart, error)
	ListEntries(ctx context.Context, chartID int64, horizon core.Horizon, month string) (core.ChartSeries, error)
	UpsertEntry(ctx context.Context, chartID int64, horizon core.Horizon, data core.ChartEntry) (storage.Entry, error)
}

// Publisher queues mirror requests for edited entries.
type Publisher interface {
	PublishEntrySync(ctx context.Context, chartID int64, horizon, date string, version int64) error
}

// SeriesResult is one rendered chart view, ready for the browser.
type SeriesResult struct {
	ChartID int64            `json:"chart_id"`
	Name    string           `json:"name"`
	Kind    string           `json:"kind"`
	Horizon core.Horizon     `json:"horizon"`
	Month   string           `json:"month,omitempty"`
	Labels  []string         `json:"labels"`
	Entries core.ChartSeries `json:"entries"`
}

// ChartService orchestrates chart reads and edits across SQLite and AMQP.
type ChartService struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

func NewChartService(store Store, publisher Publisher) *ChartService {
	return &ChartService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// MonthSeries renders the short-term view of one chart for one month.
func (s *ChartService) MonthSeries(ctx context.Context, chartID int64, year int, month time.Month) (SeriesResult, error) {
	chart, err := s.store.GetChart(ctx, chartID)
	if err != nil {
		return SeriesResult{}, err
	}

	monthKey := fmt.Sprintf("%04d-%02d", year, int(month))
	stored, err := s.store.ListEntries(ctx, chartID, core.ShortTerm, monthKey)
	if err != nil {
		return SeriesResult{}, fmt.Errorf("list entries: %w", err)
	}

	kind := core.ResolveKind(chart.Config)
	entries := core.BuildMonthSeries(chart.Config, year, month, stored)

	return SeriesResult{
		ChartID: chart.ID,
		Name:    chart.Name,
		Kind:    kind.String(),
		Horizon: core.ShortTerm,
		Month:   monthKey,
		Labels:  seriesLabels(entries, kind),
		Entries: entries,
	}, nil
}

// LongTermSeries renders the monthly view of one chart. A chart with no
// monthly entries yet gets a synthesized trailing quarter at value zero so
// the view never renders empty axes.
func (s *ChartService) LongTermSeries(ctx context.Context, chartID int64) (SeriesResult, error) {
	chart, err := s.store.GetChart(ctx, chartID)
	if err != nil {
		return SeriesResult{}, err
	}

	stored, err := s.store.ListEntries(ctx, chartID, core.LongTerm, "")
	if err != nil {
		return SeriesResult{}, fmt.Errorf("list entries: %w", err)
	}

	var entries core.ChartSeries
	if len(stored) == 0 {
		// Synthesized months are fully zeroed; the renderer draws the
		// target line from the chart config, not from these placeholders.
		for _, key := range core.TrailingMonthKeys(s.now(), 3) {
			entries = append(entries, core.ChartEntry{Date: key})
		}
	} else {
		entries = append(entries, stored...)
		// yyyy-MM keys sort chronologically as strings.
		sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
	}

	kind := core.KindStandard
	if chart.Config.IsCumulative {
		kind = core.KindCumulative
		entries = core.ToCumulative(entries)
	}

	return SeriesResult{
		ChartID: chart.ID,
		Name:    chart.Name,
		Kind:    kind.String(),
		Horizon: core.LongTerm,
		Labels:  monthLabels(entries),
		Entries: entries,
	}, nil
}

// UpdateEntry validates and persists one edited observation, then queues a
// mirror request. A mirror publish failure is logged and swallowed: the
// local write already succeeded and the backlog sweep will retry.
func (s *ChartService) UpdateEntry(ctx context.Context, chartID int64, horizon core.Horizon, e core.ChartEntry) (storage.Entry, error) {
	chart, err := s.store.GetChart(ctx, chartID)
	if err != nil {
		return storage.Entry{}, err
	}

	if err := horizon.Validate(); err != nil {
		return storage.Entry{}, err
	}
	if err := validateEntryDate(horizon, e.Date); err != nil {
		return storage.Entry{}, err
	}
	if err := chart.Config.CheckBounds(e.Value); err != nil {
		return storage.Entry{}, err
	}

	e.Value = core.RoundTo(e.Value, chart.Config.NbDecimal)
	e.Target = core.RoundTo(e.Target, chart.Config.NbDecimal)

	saved, err := s.store.UpsertEntry(ctx, chartID, horizon, e)
	if err != nil {
		return storage.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	s.publishSync(ctx, saved)
	return saved, nil
}

// DistributeTargets spreads a total target across the period buckets of one
// month (working days for daily charts, weeks for weekly ones) and writes
// the per-bucket targets, preserving any values and comments already
// recorded on those dates.
func (s *ChartService) DistributeTargets(ctx context.Context, chartID int64, horizon core.Horizon, monthKey string, total float64) (core.ChartSeries, error) {
	chart, err := s.store.GetChart(ctx, chartID)
	if err != nil {
		return nil, err
	}
	if err := horizon.Validate(); err != nil {
		return nil, err
	}

	buckets, existing, err := s.distributionBuckets(ctx, chart, horizon, monthKey)
	if err != nil {
		return nil, err
	}

	targets, err := core.Distribute(total, len(buckets), chart.Config.DistributionMode)
	if err != nil {
		return nil, err
	}

	out := make(core.ChartSeries, 0, len(buckets))
	for i, date := range buckets {
		entry := core.ChartEntry{Date: date, Target: targets[i]}
		if prev, ok := existing[date]; ok {
			entry.Value = prev.Value
			entry.Comment = prev.Comment
		}

		saved, err := s.store.UpsertEntry(ctx, chartID, horizon, entry)
		if err != nil {
			return nil, fmt.Errorf("save target for %s: %w", date, err)
		}
		s.publishSync(ctx, saved)
		out = append(out, saved.Data)
	}

	slog.InfoContext(ctx, "Distributed targets",
		"chart_id", chartID,
		"horizon", horizon,
		"month", monthKey,
		"mode", chart.Config.DistributionMode,
		"buckets", len(buckets),
		"total", total)

	return out, nil
}

func (s *ChartService) distributionBuckets(ctx context.Context, chart storage.Chart, horizon core.Horizon, monthKey string) ([]string, map[string]core.ChartEntry, error) {
	index := func(series core.ChartSeries) map[string]core.ChartEntry {
		m := make(map[string]core.ChartEntry, len(series))
		for _, e := range series {
			m[e.Date] = e
		}
		return m
	}

	if horizon == core.LongTerm {
		stored, err := s.store.ListEntries(ctx, chart.ID, core.LongTerm, "")
		if err != nil {
			return nil, nil, fmt.Errorf("list entries: %w", err)
		}
		buckets := make([]string, 0, len(stored))
		for _, e := range stored {
			buckets = append(buckets, e.Date)
		}
		sort.Strings(buckets)
		if len(buckets) == 0 {
			buckets = core.TrailingMonthKeys(s.now(), 3)
		}
		return buckets, index(stored), nil
	}

	ym, err := core.ParseMonthKey(monthKey)
	if err != nil {
		return nil, nil, err
	}

	stored, err := s.store.ListEntries(ctx, chart.ID, core.ShortTerm, monthKey)
	if err != nil {
		return nil, nil, fmt.Errorf("list entries: %w", err)
	}

	days := core.WorkingDays(ym.Year(), ym.Month())
	if chart.Config.Periodicity == core.Weekly {
		return firstWorkingDayPerWeek(days), index(stored), nil
	}
	return days, index(stored), nil
}

// BundleSeries renders the month view of every chart in a bundle,
// fetching them concurrently.
func (s *ChartService) BundleSeries(ctx context.Context, bundleID int64, year int, month time.Month) ([]SeriesResult, error) {
	if _, err := s.store.GetBundle(ctx, bundleID); err != nil {
		return nil, err
	}

	charts, err := s.store.ListChartsByBundle(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}

	results := make([]SeriesResult, len(charts))
	g, ctx := errgroup.WithContext(ctx)
	for i, chart := range charts {
		g.Go(func() error {
			res, err := s.MonthSeries(ctx, chart.ID, year, month)
			if err != nil {
				return fmt.Errorf("chart %d: %w", chart.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *ChartService) publishSync(ctx context.Context, e storage.Entry) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishEntrySync(ctx, e.ChartID, string(e.Horizon), e.Data.Date, e.Version)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"chart_id", e.ChartID,
			"date", e.Data.Date,
			"error", err)
		// Don't fail the request - entry is saved locally
	}
}

func validateEntryDate(horizon core.Horizon, date string) error {
	if horizon == core.LongTerm {
		_, err := core.ParseMonthKey(date)
		return err
	}
	_, err := core.ParseDailyDate(date)
	return err
}

// firstWorkingDayPerWeek collapses a working-day calendar to one date per
// ISO week, keeping the earliest day of each. Weekly charts take their
// distributed targets on those dates so reconciliation keeps them inside
// the month.
func firstWorkingDayPerWeek(days []string) []string {
	var (
		out      []string
		lastWeek string
	)
	for _, day := range days {
		t, err := core.ParseDailyDate(day)
		if err != nil {
			continue
		}
		week := core.WeekStart(t).Format(core.WeekKeyLayout)
		if week != lastWeek {
			out = append(out, day)
			lastWeek = week
		}
	}
	return out
}

func seriesLabels(entries core.ChartSeries, kind core.ChartKind) []string {
	labels := make([]string, len(entries))
	for i, e := range entries {
		if kind == core.KindWeekly {
			labels[i] = weekLabel(e.Date)
			continue
		}
		t, err := core.ParseDailyDate(e.Date)
		if err != nil {
			labels[i] = "invalid date"
			continue
		}
		labels[i] = core.FormatWeekdayShort(t)
	}
	return labels
}

func monthLabels(entries core.ChartSeries) []string {
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = core.FormatMonthShort(e.Date)
	}
	return labels
}

func weekLabel(weekKey string) string {
	t, err := time.Parse(core.WeekKeyLayout, weekKey)
	if err != nil {
		return "invalid date"
	}
	return fmt.Sprintf("W%d\n%s", core.ISOWeekNumber(t), t.Format("06"))
}
