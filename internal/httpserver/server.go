package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/radiusdt/vector-metrics/internal/analytics"
	"github.com/radiusdt/vector-metrics/internal/config"
	"github.com/radiusdt/vector-metrics/internal/metrics"
	"github.com/radiusdt/vector-metrics/internal/middleware"
	"github.com/radiusdt/vector-metrics/internal/models"
	"github.com/radiusdt/vector-metrics/internal/report"
	"github.com/radiusdt/vector-metrics/internal/storage"
	"go.uber.org/zap"
)

// maxBatchBody caps uploaded batches on POST /v1/runs.
const maxBatchBody = 256 << 20

// HealthChecker is implemented by the database connections.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Engine  *analytics.Engine
	Source  storage.RecordSource
	Store   storage.ReportStore
	Checks  map[string]HealthChecker
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server serves run results and triggers new runs.
type Server struct {
	engine  *analytics.Engine
	source  storage.RecordSource
	store   storage.ReportStore
	checks  map[string]HealthChecker
	logger  *zap.Logger
	config  *config.Config
	metrics *metrics.Metrics

	// one engine run at a time
	running sync.Mutex
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := deps.Store
	if store == nil {
		store = storage.NewInMemoryReportStore()
	}
	engine := deps.Engine
	if engine == nil {
		engine = analytics.NewEngine(logger, deps.Metrics)
	}

	s := &Server{
		engine:  engine,
		source:  deps.Source,
		store:   store,
		checks:  deps.Checks,
		logger:  logger,
		config:  deps.Config,
		metrics: deps.Metrics,
	}

	recovery := middleware.NewRecoveryMiddleware(logger)
	logging := middleware.NewLoggingMiddleware(logger, "/health", deps.Config.Metrics.Path)
	rateLimit := middleware.NewRateLimitMiddleware(deps.Config.RateLimit, logger)
	auth := middleware.NewAuthMiddleware(deps.Config.Auth, logger)
	if deps.Metrics != nil {
		logging.SetMetrics(deps.Metrics)
		rateLimit.SetMetrics(deps.Metrics)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID, recovery.Handler, logging.Handler, rateLimit.Handler, auth.Handler)

	r.Get("/health", s.handleHealth)

	if deps.Config.Metrics.Enabled && deps.Metrics != nil {
		r.Handle(deps.Config.Metrics.Path, deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/report", s.handleReport)
		r.Get("/report/tables", s.handleTableNames)
		r.Get("/report/tables/{name}", s.handleTable)
		r.Post("/runs", s.handleRun)
	})

	return r
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.Health(ctx); err != nil {
			s.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

// ---- Reports ----

// lookup returns the result named by ?fingerprint=, or the latest one.
func (s *Server) lookup(r *http.Request) (*models.RunResult, error) {
	if fp := r.URL.Query().Get("fingerprint"); fp != "" {
		return s.store.GetResult(r.Context(), fp)
	}
	return s.store.LatestResult(r.Context())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.lookup(r)
	if err != nil {
		s.logger.Error("failed to load report", zap.Error(err))
		s.errorResponse(w, "failed to load report", http.StatusInternalServerError)
		return
	}
	if res == nil {
		s.errorResponse(w, "no report available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Run-ID", res.ID)
	w.Header().Set("X-Batch-Fingerprint", res.Fingerprint)
	if err := report.Encode(w, res.Report, format); err != nil {
		s.logger.Error("failed to encode report", zap.Error(err))
	}
}

func (s *Server) handleTableNames(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"tables": report.TableNames()})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	res, err := s.lookup(r)
	if err != nil {
		s.logger.Error("failed to load report", zap.Error(err))
		s.errorResponse(w, "failed to load report", http.StatusInternalServerError)
		return
	}
	if res == nil {
		s.errorResponse(w, "no report available", http.StatusNotFound)
		return
	}

	table, err := report.Table(res.Report, name)
	if errors.Is(err, report.ErrUnknownTable) {
		s.errorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":        name,
		"run_id":      res.ID,
		"fingerprint": res.Fingerprint,
		"rows":        table,
	})
}

// ---- Runs ----

type runResponse struct {
	ID          string                   `json:"id"`
	Fingerprint string                   `json:"fingerprint"`
	StartedAt   time.Time                `json:"started_at"`
	Elapsed     string                   `json:"elapsed"`
	Issues      map[models.IssueKind]int `json:"issues"`
}

// handleRun runs the engine over an uploaded JSON batch, or over the
// configured source when the body is empty.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.running.TryLock() {
		s.errorResponse(w, "a run is already in progress", http.StatusConflict)
		return
	}
	defer s.running.Unlock()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBody))
	if err != nil {
		s.errorResponse(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var batch models.Batch
	switch {
	case len(body) > 0:
		if err := json.Unmarshal(body, &batch); err != nil {
			s.errorResponse(w, "invalid batch json", http.StatusBadRequest)
			return
		}
	case s.source != nil:
		batch, err = storage.LoadBatch(r.Context(), s.source, nil)
		if err != nil {
			s.logger.Error("failed to load batch", zap.Error(err))
			s.errorResponse(w, "failed to load batch", http.StatusBadGateway)
			return
		}
	default:
		s.errorResponse(w, "no record source configured", http.StatusServiceUnavailable)
		return
	}

	res, err := s.engine.Run(r.Context(), batch)
	if err != nil {
		s.logger.Error("engine run failed", zap.Error(err))
		s.errorResponse(w, "engine run failed", http.StatusInternalServerError)
		return
	}

	if err := s.store.SaveResult(r.Context(), res); err != nil {
		s.logger.Error("failed to save result", zap.String("run_id", res.ID), zap.Error(err))
		s.errorResponse(w, "failed to save result", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusCreated, runResponse{
		ID:          res.ID,
		Fingerprint: res.Fingerprint,
		StartedAt:   res.StartedAt,
		Elapsed:     res.Elapsed.String(),
		Issues:      res.Report.Diagnostics.Counts,
	})
}

// ---- Helpers ----

func (s *Server) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, map[string]string{"error": message})
}
