package http

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"leandash/internal/cache"
	"leandash/internal/core"
	applog "leandash/internal/log"
	"leandash/internal/services"
	"leandash/internal/storage"
	appweb "leandash/web"
)

// ChartAPI is the slice of the chart service the handlers use.
type ChartAPI interface {
	MonthSeries(ctx context.Context, chartID int64, year int, month time.Month) (services.SeriesResult, error)
	LongTermSeries(ctx context.Context, chartID int64) (services.SeriesResult, error)
	BundleSeries(ctx context.Context, bundleID int64, year int, month time.Month) ([]services.SeriesResult, error)
	UpdateEntry(ctx context.Context, chartID int64, horizon core.Horizon, e core.ChartEntry) (storage.Entry, error)
	ImportEntries(ctx context.Context, chartID int64, horizon core.Horizon, r io.Reader) (services.ImportReport, error)
	DistributeTargets(ctx context.Context, chartID int64, horizon core.Horizon, monthKey string, total float64) (core.ChartSeries, error)
}

// AdminStore is the persistence surface of the admin CRUD handlers.
type AdminStore interface {
	CreateService(ctx context.Context, name string) (storage.Service, error)
	GetService(ctx context.Context, id int64) (storage.Service, error)
	ListServices(ctx context.Context) ([]storage.Service, error)
	UpdateService(ctx context.Context, id int64, name string) (storage.Service, error)
	DeleteService(ctx context.Context, id int64) error

	CreateTeam(ctx context.Context, serviceID int64, name string) (storage.Team, error)
	GetTeam(ctx context.Context, id int64) (storage.Team, error)
	ListTeams(ctx context.Context) ([]storage.Team, error)
	UpdateTeam(ctx context.Context, id, serviceID int64, name string) (storage.Team, error)
	DeleteTeam(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, u storage.User) (storage.User, error)
	GetUser(ctx context.Context, id int64) (storage.User, error)
	ListUsers(ctx context.Context) ([]storage.User, error)
	UpdateUser(ctx context.Context, u storage.User) (storage.User, error)
	DeleteUser(ctx context.Context, id int64) error

	CreateBundle(ctx context.Context, teamID int64, name, icon string) (storage.Bundle, error)
	GetBundle(ctx context.Context, id int64) (storage.Bundle, error)
	ListBundles(ctx context.Context) ([]storage.Bundle, error)
	UpdateBundle(ctx context.Context, b storage.Bundle) (storage.Bundle, error)
	DeleteBundle(ctx context.Context, id int64) error

	CreateChart(ctx context.Context, c storage.Chart) (storage.Chart, error)
	GetChart(ctx context.Context, id int64) (storage.Chart, error)
	ListCharts(ctx context.Context) ([]storage.Chart, error)
	ListChartsByBundle(ctx context.Context, bundleID int64) ([]storage.Chart, error)
	UpdateChart(ctx context.Context, c storage.Chart) (storage.Chart, error)
	DeleteChart(ctx context.Context, id int64) error
}

type Server struct {
	http.Server
	charts ChartAPI
	store  AdminStore

	rateLimiter *rateLimiter

	// Rendered series are cached per chart view and per bundle; edits
	// invalidate by key prefix.
	seriesCache *cache.LRUCache[services.SeriesResult]
	bundleCache *cache.LRUCache[[]services.SeriesResult]
	cacheMgr    *cache.Manager

	shutdownOnce sync.Once
}

// Options tunes server caching; zero values fall back to defaults.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(addr string, charts ChartAPI, store AdminStore, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 200
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	mux := http.NewServeMux()
	httpLogger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentHTTP})

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: applog.Middleware(httpLogger)(mux),
		},
		charts:      charts,
		store:       store,
		rateLimiter: newRateLimiter(),
		seriesCache: cache.NewLRUCache[services.SeriesResult](opts.CacheSize, opts.CacheTTL),
		bundleCache: cache.NewLRUCache[[]services.SeriesResult](opts.CacheSize, opts.CacheTTL),
		cacheMgr:    cache.NewManager(),
	}

	s.cacheMgr.Register(s.seriesCache)
	s.cacheMgr.Register(s.bundleCache)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("GET /{$}", s.wrap(s.handleIndex))

	// Admin CRUD
	mux.HandleFunc("GET /api/services", s.wrap(s.handleListServices))
	mux.HandleFunc("POST /api/services", s.wrap(s.handleCreateService))
	mux.HandleFunc("GET /api/services/{id}", s.wrap(s.handleGetService))
	mux.HandleFunc("PUT /api/services/{id}", s.wrap(s.handleUpdateService))
	mux.HandleFunc("DELETE /api/services/{id}", s.wrap(s.handleDeleteService))

	mux.HandleFunc("GET /api/teams", s.wrap(s.handleListTeams))
	mux.HandleFunc("POST /api/teams", s.wrap(s.handleCreateTeam))
	mux.HandleFunc("GET /api/teams/{id}", s.wrap(s.handleGetTeam))
	mux.HandleFunc("PUT /api/teams/{id}", s.wrap(s.handleUpdateTeam))
	mux.HandleFunc("DELETE /api/teams/{id}", s.wrap(s.handleDeleteTeam))

	mux.HandleFunc("GET /api/users", s.wrap(s.handleListUsers))
	mux.HandleFunc("POST /api/users", s.wrap(s.handleCreateUser))
	mux.HandleFunc("GET /api/users/{id}", s.wrap(s.handleGetUser))
	mux.HandleFunc("PUT /api/users/{id}", s.wrap(s.handleUpdateUser))
	mux.HandleFunc("DELETE /api/users/{id}", s.wrap(s.handleDeleteUser))

	mux.HandleFunc("GET /api/bundles", s.wrap(s.handleListBundles))
	mux.HandleFunc("POST /api/bundles", s.wrap(s.handleCreateBundle))
	mux.HandleFunc("GET /api/bundles/{id}", s.wrap(s.handleGetBundle))
	mux.HandleFunc("PUT /api/bundles/{id}", s.wrap(s.handleUpdateBundle))
	mux.HandleFunc("DELETE /api/bundles/{id}", s.wrap(s.handleDeleteBundle))
	mux.HandleFunc("GET /api/bundles/{id}/charts", s.wrap(s.handleListBundleCharts))
	mux.HandleFunc("GET /api/bundles/{id}/series", s.wrap(s.handleBundleSeries))

	mux.HandleFunc("GET /api/charts", s.wrap(s.handleListCharts))
	mux.HandleFunc("POST /api/charts", s.wrap(s.handleCreateChart))
	mux.HandleFunc("GET /api/charts/{id}", s.wrap(s.handleGetChart))
	mux.HandleFunc("PUT /api/charts/{id}", s.wrap(s.handleUpdateChart))
	mux.HandleFunc("DELETE /api/charts/{id}", s.wrap(s.handleDeleteChart))

	// Series and edits
	mux.HandleFunc("GET /api/charts/{id}/series", s.wrap(s.handleChartSeries))
	mux.HandleFunc("PUT /api/charts/{id}/entries", s.wrap(s.handleUpdateEntry))
	mux.HandleFunc("POST /api/charts/{id}/import", s.wrap(s.handleImportEntries))
	mux.HandleFunc("POST /api/charts/{id}/distribute", s.wrap(s.handleDistributeTargets))

	return s
}

// Shutdown stops the HTTP server and the cache and rate limiter sweeps.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// wrap adds security headers, rate limiting and request logging.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)
		logger := applog.FromContext(ctx)

		logger.InfoContext(ctx, "Request started",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP)

		// Mutating requests are rate limited per client.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP, applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		logger.InfoContext(ctx, "Request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(appweb.StaticFS, "static/index.html")
	if err != nil {
		slog.ErrorContext(r.Context(), "Index page not embedded", "error", err)
		writeError(w, http.StatusInternalServerError, "index page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}
