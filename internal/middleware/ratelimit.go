package middleware

import (
	"net/http"
	"strings"

	"github.com/radiusdt/vector-metrics/internal/config"
	"github.com/radiusdt/vector-metrics/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter names.
const (
	LimiterRead = "read"
	LimiterRun  = "run"
)

// RateLimitMiddleware applies token bucket limits. Engine runs recompute the
// whole report, so POST /v1/runs draws from a bucket a tenth the size of the
// one serving reads.
type RateLimitMiddleware struct {
	cfg         config.RateLimitConfig
	logger      *zap.Logger
	metrics     *metrics.Metrics
	readLimiter *rate.Limiter
	runLimiter  *rate.Limiter
}

// NewRateLimitMiddleware creates a new rate limiting middleware.
func NewRateLimitMiddleware(cfg config.RateLimitConfig, logger *zap.Logger) *RateLimitMiddleware {
	runBurst := cfg.Burst / 10
	if runBurst < 1 {
		runBurst = 1
	}
	return &RateLimitMiddleware{
		cfg:         cfg,
		logger:      logger,
		readLimiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		runLimiter:  rate.NewLimiter(rate.Limit(cfg.RPS/10), runBurst),
	}
}

func (rl *RateLimitMiddleware) SetMetrics(m *metrics.Metrics) {
	rl.metrics = m
}

// Handler wraps an http.Handler with rate limiting.
func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		name, limiter := LimiterRead, rl.readLimiter
		if rl.isRunEndpoint(r) {
			name, limiter = LimiterRun, rl.runLimiter
		}

		if !limiter.Allow() {
			rl.logger.Warn("rate limit exceeded",
				zap.String("limiter", name),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitHit(name)
			}
			rl.tooManyRequests(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) isRunEndpoint(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/v1/runs")
}

func (rl *RateLimitMiddleware) tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
}
