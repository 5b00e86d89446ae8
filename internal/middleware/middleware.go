package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/radiusdt/vector-metrics/internal/config"
	"github.com/radiusdt/vector-metrics/internal/metrics"
	"go.uber.org/zap"
)

// AuthHeaderName carries the API key. "Authorization: Bearer <key>" is
// accepted as well. Keys are never read from the query string, since
// request URLs end up in the access log.
const AuthHeaderName = "X-API-Key"

// NewLogger builds the service logger. format "console" selects the
// development encoder; anything else logs JSON. Unknown levels fall back
// to info.
func NewLogger(level, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = lvl
	cfg.InitialFields = map[string]any{"service": "vector-metrics"}

	return cfg.Build()
}

// =============================================
// Recovery
// =============================================

// RecoveryMiddleware turns a panicking handler into a 500 so a broken
// report encode cannot take the server down.
type RecoveryMiddleware struct {
	logger *zap.Logger
}

func NewRecoveryMiddleware(logger *zap.Logger) *RecoveryMiddleware {
	return &RecoveryMiddleware{logger: logger}
}

func (rm *RecoveryMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			rm.logger.Error("handler panicked",
				zap.Any("panic", rec),
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("route", routePattern(r)),
				zap.Stack("stack"),
			)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

// =============================================
// Logging
// =============================================

// LoggingMiddleware writes one access log line per request and, when
// metrics are attached, records route and latency. Requests to quiet
// paths (health probes, scrapes) log at debug.
type LoggingMiddleware struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	quiet   map[string]bool
}

func NewLoggingMiddleware(logger *zap.Logger, quietPaths ...string) *LoggingMiddleware {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}
	return &LoggingMiddleware{logger: logger, quiet: quiet}
}

func (l *LoggingMiddleware) SetMetrics(m *metrics.Metrics) {
	l.metrics = m
}

func (l *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		if l.metrics != nil {
			l.metrics.RecordHTTPRequest(route, status, elapsed)
		}

		log := l.logger.Info
		switch {
		case status >= 500:
			log = l.logger.Error
		case status >= 400:
			log = l.logger.Warn
		case l.quiet[r.URL.Path]:
			log = l.logger.Debug
		}
		log("request",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", elapsed),
			zap.String("fingerprint", w.Header().Get("X-Batch-Fingerprint")),
		)
	})
}

// routePattern returns the matched chi route, or "unmatched" for requests
// that never reached a route. Raw paths would explode label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// =============================================
// Auth
// =============================================

// AuthMiddleware checks the API key on every path outside SkipPaths. A skip
// path covers itself and anything below it.
type AuthMiddleware struct {
	cfg    config.AuthConfig
	logger *zap.Logger
}

func NewAuthMiddleware(cfg config.AuthConfig, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{cfg: cfg, logger: logger}
}

func (a *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled || a.skipped(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		key := requestKey(r)
		switch {
		case key == "":
			a.unauthorized(w, "missing API key")
		case subtle.ConstantTimeCompare([]byte(key), []byte(a.cfg.MasterKey)) != 1:
			a.logger.Warn("rejected API key",
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			a.unauthorized(w, "invalid API key")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get(AuthHeaderName); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (a *AuthMiddleware) skipped(path string) bool {
	for _, p := range a.cfg.SkipPaths {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

func (a *AuthMiddleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="vector-metrics"`)
	writeError(w, http.StatusUnauthorized, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
