package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"leandash/internal/core"
	"leandash/internal/services"
	"leandash/internal/storage"
)

// fakeCharts counts calls so cache behavior is observable.
type fakeCharts struct {
	monthCalls  atomic.Int64
	bundleCalls atomic.Int64
	monthErr    error
}

func (f *fakeCharts) MonthSeries(_ context.Context, chartID int64, year int, month time.Month) (services.SeriesResult, error) {
	f.monthCalls.Add(1)
	if f.monthErr != nil {
		return services.SeriesResult{}, f.monthErr
	}
	return services.SeriesResult{
		ChartID: chartID,
		Name:    "velocity",
		Kind:    "standard",
		Horizon: core.ShortTerm,
		Month:   fmt.Sprintf("%04d-%02d", year, int(month)),
		Entries: core.ChartSeries{{Date: "01-07-2026", Target: 8, Value: 5}},
		Labels:  []string{"Wed\n01"},
	}, nil
}

func (f *fakeCharts) LongTermSeries(_ context.Context, chartID int64) (services.SeriesResult, error) {
	return services.SeriesResult{ChartID: chartID, Kind: "standard", Horizon: core.LongTerm}, nil
}

func (f *fakeCharts) BundleSeries(_ context.Context, bundleID int64, year int, month time.Month) ([]services.SeriesResult, error) {
	f.bundleCalls.Add(1)
	return []services.SeriesResult{{ChartID: 1}, {ChartID: 2}}, nil
}

func (f *fakeCharts) UpdateEntry(_ context.Context, chartID int64, horizon core.Horizon, e core.ChartEntry) (storage.Entry, error) {
	if _, err := core.ParseDailyDate(e.Date); horizon == core.ShortTerm && err != nil {
		return storage.Entry{}, err
	}
	return storage.Entry{ID: 1, ChartID: chartID, Horizon: horizon, Data: e, Version: 2}, nil
}

func (f *fakeCharts) ImportEntries(_ context.Context, _ int64, _ core.Horizon, r io.Reader) (services.ImportReport, error) {
	data, _ := io.ReadAll(r)
	lines := strings.Count(strings.TrimSpace(string(data)), "\n")
	return services.ImportReport{Imported: lines}, nil
}

func (f *fakeCharts) DistributeTargets(_ context.Context, _ int64, _ core.Horizon, monthKey string, total float64) (core.ChartSeries, error) {
	if _, err := core.ParseMonthKey(monthKey); err != nil {
		return nil, err
	}
	return core.ChartSeries{{Date: "01-07-2026", Target: total}}, nil
}

// fakeAdminStore covers only what the tests touch; embedding the
// interface leaves the rest panicking if reached unexpectedly.
type fakeAdminStore struct {
	AdminStore
	services map[int64]storage.Service
	charts   map[int64]storage.Chart
	nextID   int64
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{
		services: map[int64]storage.Service{},
		charts: map[int64]storage.Chart{
			7: {ID: 7, BundleID: 3, Name: "velocity"},
		},
		nextID: 1,
	}
}

func (f *fakeAdminStore) CreateService(_ context.Context, name string) (storage.Service, error) {
	s := storage.Service{ID: f.nextID, Name: name}
	f.services[s.ID] = s
	f.nextID++
	return s, nil
}

func (f *fakeAdminStore) GetService(_ context.Context, id int64) (storage.Service, error) {
	s, ok := f.services[id]
	if !ok {
		return storage.Service{}, fmt.Errorf("service %d: %w", id, storage.ErrNotFound)
	}
	return s, nil
}

func (f *fakeAdminStore) ListServices(_ context.Context) ([]storage.Service, error) {
	var out []storage.Service
	for _, s := range f.services {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeAdminStore) DeleteService(_ context.Context, id int64) error {
	if _, ok := f.services[id]; !ok {
		return fmt.Errorf("service %d: %w", id, storage.ErrNotFound)
	}
	delete(f.services, id)
	return nil
}

func (f *fakeAdminStore) GetChart(_ context.Context, id int64) (storage.Chart, error) {
	c, ok := f.charts[id]
	if !ok {
		return storage.Chart{}, fmt.Errorf("chart %d: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func newTestServer() (*Server, *fakeCharts, *fakeAdminStore) {
	charts := &fakeCharts{}
	store := newFakeAdminStore()
	srv := NewServer(":0", charts, store, Options{})
	return srv, charts, store
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	srv, _, _ := newTestServer()
	defer srv.Shutdown(context.Background())

	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := do(srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rr.Code)
		}
	}
}

func TestIndexServedFromEmbed(t *testing.T) {
	srv, _, _ := newTestServer()
	defer srv.Shutdown(context.Background())

	rr := do(srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "leandash") {
		t.Error("index body missing app shell")
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestChartSeries_CachesByMonth(t *testing.T) {
	srv, charts, _ := newTestServer()
	defer srv.Shutdown(context.Background())

	for i := 0; i < 3; i++ {
		rr := do(srv, http.MethodGet, "/api/charts/7/series?month=2026-07", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("series status = %d: %s", rr.Code, rr.Body.String())
		}
	}
	if got := charts.monthCalls.Load(); got != 1 {
		t.Errorf("MonthSeries calls = %d, want 1 (cached)", got)
	}

	// A different month is a different cache key.
	do(srv, http.MethodGet, "/api/charts/7/series?month=2026-08", "")
	if got := charts.monthCalls.Load(); got != 2 {
		t.Errorf("MonthSeries calls = %d, want 2", got)
	}
}

func TestChartSeries_BadMonthRejected(t *testing.T) {
	srv, _, _ := newTestServer()
	defer srv.Shutdown(context.Background())

	rr := do(srv, http.MethodGet, "/api/charts/7/series?month=July", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestChartSeries_NotFound(t *testing.T) {
	srv, charts, _ := newTestServer()
	defer srv.Shutdown(context.Background())
	charts.monthErr = fmt.Errorf("chart 99: %w", storage.ErrNotFound)

	rr := do(srv, http.MethodGet, "/api/charts/99/series?month=2026-07", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestUpdateEntry_InvalidatesSeriesCache(t *testing.T) {
	srv, charts, _ := newTestServer()
	defer srv.Shutdown(context.Background())

	do(srv, http.MethodGet, "/api/charts/7/series?month=2026-07", "")
	if charts.monthCalls.Load() != 1 {
		t.Fatal("expected first fetch to populate cache")
	}

	rr := do(srv, http.MethodPut, "/api/charts/7/entries",
		`{"horizon":"short","date":"06-07-2026","target":"8","value":"5,5","comment":"ok"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rr.Code, rr.Body.String())
	}

	var saved storage.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if saved.Data.Value != 5.5 {
		t.Errorf("saved value = %g, want 5.5 (decimal comma coerced)", saved.Data.Value)
	}

	do(srv, http.MethodGet, "/api/charts/7/series?month=2026-07", "")
	if got := charts.monthCalls.Load(); got != 2 {
		t.Errorf("MonthSeries calls after invalidation = %d, want 2", got)
	}
}

func TestUpdateEntry_BadDate(t *testing.T) {
	srv, _, _ := newTestServer()
	defer srv.Shutdown(context.Background())

	rr := do(srv, http.MethodPut, "/api/charts/7/entries",
		`{"horizon":"short","date":"2026/07/06","value":5}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestBundleSeries_Cached(t *testing.T) {
	srv, charts, _ := newTestServer()
	defer srv.Shutdown(context.Background())

	for i := 0; i < 2; i++ {
		rr := do(srv, http.MethodGet, "/api/bundles/3/series?month=2026-07", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("bundle series status = %d", rr.Code)
		}
	}
	if got := charts.bundleCalls.Load(); got != 1 {
		t.Errorf("BundleSeries calls = %d, want 1 (cached)", got)
	}
}

func TestDistribute(t *testing.T) {
	srv, _, _ := newTestServer()
	defer srv.Shutdown(context.Background())

	rr := do(srv, http.MethodPost, "/api/charts/7/distribute",
		`{"horizon":"short","month":"2026-07","total":"100"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("distribute status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(srv, http.MethodPost, "/api/charts/7/distribute",
		`{"month":"not-a-month","total":100}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad month status = %d, want 400", rr.Code)
	}
}

func TestImportEndpoint(t *testing.T) {
	srv, _, _ := newTestServer()
	defer srv.Shutdown(context.Background())

	rr := do(srv, http.MethodPost, "/api/charts/7/import?horizon=short",
		"date,target,value,comment\n01-07-2026,8,5,x")
	if rr.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rr.Code, rr.Body.String())
	}
	var report services.ImportReport
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Imported != 1 {
		t.Errorf("Imported = %d, want 1", report.Imported)
	}
}

func TestServiceCRUD(t *testing.T) {
	srv, _, _ := newTestServer()
	defer srv.Shutdown(context.Background())

	rr := do(srv, http.MethodPost, "/api/services", `{"name":"Engineering"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	var created storage.Service
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created service: %v", err)
	}

	if rr := do(srv, http.MethodGet, fmt.Sprintf("/api/services/%d", created.ID), ""); rr.Code != http.StatusOK {
		t.Errorf("get status = %d, want 200", rr.Code)
	}

	if rr := do(srv, http.MethodPost, "/api/services", `{"name":""}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty name status = %d, want 400", rr.Code)
	}

	if rr := do(srv, http.MethodDelete, fmt.Sprintf("/api/services/%d", created.ID), ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rr.Code)
	}

	if rr := do(srv, http.MethodGet, fmt.Sprintf("/api/services/%d", created.ID), ""); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rr.Code)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	srv, _, _ := newTestServer()
	defer srv.Shutdown(context.Background())

	var last int
	for i := 0; i < 61; i++ {
		rr := do(srv, http.MethodPost, "/api/services", `{"name":"svc"}`)
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("61st mutation status = %d, want 429", last)
	}

	// Reads are not rate limited.
	if rr := do(srv, http.MethodGet, "/api/services", ""); rr.Code != http.StatusOK {
		t.Errorf("read during limit status = %d, want 200", rr.Code)
	}
}
