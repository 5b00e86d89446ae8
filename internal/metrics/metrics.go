package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/radiusdt/vector-metrics/internal/models"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds all Prometheus metrics for the analytics service. Each
// instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	Runs        *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// Engagement metrics
	ActiveUsers         *prometheus.GaugeVec
	StickyFactor        *prometheus.GaugeVec
	SessionDurationMode prometheus.Gauge

	// Monetization and unit economics
	LTV   *prometheus.GaugeVec
	Spend *prometheus.GaugeVec
	CAC   *prometheus.GaugeVec
	ROMI  *prometheus.GaugeVec

	// Data quality
	Issues          *prometheus.GaugeVec
	ExcludedRecords *prometheus.GaugeVec

	// HTTP API
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_runs_total",
				Help:      "Total engine runs by status",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_run_duration_seconds",
				Help:      "Engine run duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
		),

		ActiveUsers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_users_avg",
				Help:      "Average distinct active users per window",
			},
			[]string{"window"},
		),
		StickyFactor: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sticky_factor_percent",
				Help:      "Sticky factor (daily = DAU/WAU, weekly = WAU/MAU)",
			},
			[]string{"window"},
		),
		SessionDurationMode: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_duration_mode_seconds",
				Help:      "Most frequent session duration",
			},
		),

		LTV: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ltv_dollars",
				Help:      "Lifetime value per paying user",
			},
			[]string{"dimension", "key"},
		),
		Spend: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "spend_dollars",
				Help:      "Total marketing spend per source",
			},
			[]string{"source_id"},
		),
		CAC: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cac_dollars",
				Help:      "Customer acquisition cost per source",
			},
			[]string{"source_id"},
		),
		ROMI: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "romi_ratio",
				Help:      "Return on marketing investment per source (absent when undefined)",
			},
			[]string{"source_id"},
		),

		Issues: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "data_issues",
				Help:      "Data anomalies found in the last run",
			},
			[]string{"kind"},
		),
		ExcludedRecords: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "excluded_records",
				Help:      "Raw records excluded from the last run",
			},
			[]string{"stream"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total API requests",
			},
			[]string{"route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "API request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"limiter"},
		),
	}
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler exposing this instance's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRun records an engine run.
func (m *Metrics) RecordRun(status string, elapsed time.Duration) {
	m.Runs.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

// RecordHTTPRequest records a served API request.
func (m *Metrics) RecordHTTPRequest(route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RecordRateLimitHit records a rejected request.
func (m *Metrics) RecordRateLimitHit(limiter string) {
	m.RateLimitHits.WithLabelValues(limiter).Inc()
}

// UpdateReport replaces the report gauges with the values of r.
func (m *Metrics) UpdateReport(r *models.Report) {
	eng := r.Engagement
	m.ActiveUsers.WithLabelValues("daily").Set(eng.AvgDAU)
	m.ActiveUsers.WithLabelValues("weekly").Set(eng.AvgWAU)
	m.ActiveUsers.WithLabelValues("monthly").Set(eng.AvgMAU)
	m.StickyFactor.WithLabelValues("daily").Set(eng.Sticky.Daily)
	m.StickyFactor.WithLabelValues("weekly").Set(eng.Sticky.Weekly)
	m.SessionDurationMode.Set(float64(eng.SessionDurationMode))

	m.LTV.Reset()
	for _, row := range r.Monetization.ByChannel {
		m.LTV.WithLabelValues("source", strconv.Itoa(row.SourceID)).Set(row.LTV)
	}
	for _, row := range r.Monetization.ByDevice {
		m.LTV.WithLabelValues("device", string(row.Device)).Set(row.LTV)
	}

	m.Spend.Reset()
	for _, row := range r.Costs.ByChannel {
		m.Spend.WithLabelValues(strconv.Itoa(row.SourceID)).Set(row.Spend)
	}

	m.CAC.Reset()
	for _, row := range r.UnitEconomics.CAC {
		m.CAC.WithLabelValues(strconv.Itoa(row.SourceID)).Set(row.CAC)
	}

	m.ROMI.Reset()
	for _, row := range r.UnitEconomics.ROMI {
		if row.ROMI.Defined {
			m.ROMI.WithLabelValues(strconv.Itoa(row.SourceID)).Set(row.ROMI.Value)
		}
	}

	m.Issues.Reset()
	for kind, n := range r.Diagnostics.Counts {
		m.Issues.WithLabelValues(string(kind)).Set(float64(n))
	}

	m.ExcludedRecords.WithLabelValues("sessions").Set(float64(r.Diagnostics.ExcludedSessions))
	m.ExcludedRecords.WithLabelValues("orders").Set(float64(r.Diagnostics.ExcludedOrders))
	m.ExcludedRecords.WithLabelValues("costs").Set(float64(r.Diagnostics.ExcludedCosts))
}
