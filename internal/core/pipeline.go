package core

import "time"

// ChartKind is the resolved presentation variant of a chart. It replaces
// scattered periodicity/cumulative flag checks with a single tagged value
// decided once per configuration.
type ChartKind int

const (
	KindStandard ChartKind = iota
	KindCumulative
	KindWeekly
)

func (k ChartKind) String() string {
	switch k {
	case KindCumulative:
		return "cumulative"
	case KindWeekly:
		return "weekly"
	default:
		return "standard"
	}
}

// ResolveKind selects the aggregation pipeline for a chart configuration.
// Weekly periodicity takes precedence over the cumulative flag: a chart that
// is both weekly and cumulative renders through the weekly pipeline, and
// cumulative aggregation is not layered on top of week buckets. That
// ordering is the product's current contract; it is centralized here so a
// future decision changes exactly one place.
func ResolveKind(cfg ChartConfig) ChartKind {
	if cfg.Periodicity == Weekly {
		return KindWeekly
	}
	if cfg.IsCumulative {
		return KindCumulative
	}
	return KindStandard
}

// BuildMonthSeries runs the full short-term pipeline for one display month:
// working-day calendar, reconciliation against stored entries, then the
// aggregation stage the resolved kind calls for.
func BuildMonthSeries(cfg ChartConfig, year int, month time.Month, stored ChartSeries) ChartSeries {
	calendar := WorkingDays(year, month)
	series := Reconcile(calendar, stored, cfg.MainTarget(ShortTerm))

	switch ResolveKind(cfg) {
	case KindWeekly:
		return GroupByWeek(series)
	case KindCumulative:
		return ToCumulative(series)
	default:
		return series
	}
}
