package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"leandash/internal/core"
)

func chartCacheKey(id int64, horizon core.Horizon, monthKey string) string {
	return fmt.Sprintf("chart:%d:%s:%s", id, horizon, monthKey)
}

func chartCachePrefix(id int64) string {
	return fmt.Sprintf("chart:%d:", id)
}

func bundleCacheKey(id int64, monthKey string) string {
	return fmt.Sprintf("bundle:%d:%s", id, monthKey)
}

func bundleCachePrefix(id int64) string {
	return fmt.Sprintf("bundle:%d:", id)
}

// invalidateChart drops every cached view of a chart and of the bundle it
// belongs to.
func (s *Server) invalidateChart(ctx context.Context, id int64) {
	dropped := s.seriesCache.DeletePrefix(chartCachePrefix(id))

	chart, err := s.store.GetChart(ctx, id)
	if err != nil {
		// Bundle unknown; drop every bundle view rather than serve stale data.
		dropped += s.bundleCache.DeletePrefix("bundle:")
	} else {
		dropped += s.bundleCache.DeletePrefix(bundleCachePrefix(chart.BundleID))
	}

	if dropped > 0 {
		slog.DebugContext(ctx, "Invalidated cached series", "chart_id", id, "dropped", dropped)
	}
}

func (s *Server) handleChartSeries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	horizon, err := queryHorizon(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if horizon == core.LongTerm {
		key := chartCacheKey(id, horizon, "")
		if res, found := s.seriesCache.Get(key); found {
			writeJSON(w, http.StatusOK, res)
			return
		}
		res, err := s.charts.LongTermSeries(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		s.seriesCache.Set(key, res)
		writeJSON(w, http.StatusOK, res)
		return
	}

	year, month, err := queryMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	monthKey := fmt.Sprintf("%04d-%02d", year, int(month))
	key := chartCacheKey(id, horizon, monthKey)
	if res, found := s.seriesCache.Get(key); found {
		writeJSON(w, http.StatusOK, res)
		return
	}

	res, err := s.charts.MonthSeries(r.Context(), id, year, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.seriesCache.Set(key, res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBundleSeries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	year, month, err := queryMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	monthKey := fmt.Sprintf("%04d-%02d", year, int(month))
	key := bundleCacheKey(id, monthKey)
	if res, found := s.bundleCache.Get(key); found {
		writeJSON(w, http.StatusOK, res)
		return
	}

	res, err := s.charts.BundleSeries(r.Context(), id, year, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.bundleCache.Set(key, res)
	writeJSON(w, http.StatusOK, res)
}
