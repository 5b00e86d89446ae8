package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/radiusdt/vector-metrics/internal/metrics"
	"github.com/radiusdt/vector-metrics/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine runs the full aggregation pipeline over a static batch. It holds
// no state between runs.
type Engine struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewEngine creates an engine. Both arguments may be nil.
func NewEngine(logger *zap.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, metrics: m}
}

// Run normalizes the batch, assigns cohorts, computes the independent
// aggregates in parallel and finally derives unit economics. Data anomalies
// never fail a run; they are collected in the report diagnostics. Only a
// cancelled context returns an error.
func (e *Engine) Run(ctx context.Context, batch models.Batch) (*models.RunResult, error) {
	started := time.Now()
	runID := uuid.New().String()

	if err := ctx.Err(); err != nil {
		e.recordRun(metrics.StatusFailed, started)
		return nil, err
	}

	fingerprint, err := Fingerprint(batch)
	if err != nil {
		e.recordRun(metrics.StatusFailed, started)
		return nil, fmt.Errorf("fingerprint batch: %w", err)
	}

	log := e.logger.With(zap.String("run_id", runID), zap.String("fingerprint", fingerprint))
	log.Info("engine run started",
		zap.Int("sessions", len(batch.Sessions)),
		zap.Int("orders", len(batch.Orders)),
		zap.Int("costs", len(batch.Costs)),
	)

	report, err := Compute(ctx, batch)
	if err != nil {
		log.Error("engine run aborted", zap.Error(err))
		e.recordRun(metrics.StatusFailed, started)
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	elapsed := time.Since(started)
	diag := report.Diagnostics
	log.Info("engine run finished",
		zap.Duration("elapsed", elapsed),
		zap.Int("issues", len(diag.Issues)),
		zap.Int("excluded_sessions", diag.ExcludedSessions),
		zap.Int("excluded_orders", diag.ExcludedOrders),
		zap.Int("excluded_costs", diag.ExcludedCosts),
	)
	for kind, n := range diag.Counts {
		log.Warn("data anomalies found", zap.String("kind", string(kind)), zap.Int("count", n))
	}

	e.recordRun(metrics.StatusOK, started)
	if e.metrics != nil {
		e.metrics.UpdateReport(report)
	}

	return &models.RunResult{
		ID:          runID,
		Fingerprint: fingerprint,
		StartedAt:   started.UTC(),
		Elapsed:     elapsed,
		Report:      report,
	}, nil
}

func (e *Engine) recordRun(status string, started time.Time) {
	if e.metrics != nil {
		e.metrics.RecordRun(status, time.Since(started))
	}
}

// Compute is the pure pipeline behind Run. Equal batches yield equal reports.
func Compute(ctx context.Context, batch models.Batch) (*models.Report, error) {
	sessions, sessionIssues := NormalizeSessions(batch.Sessions)
	orders, orderIssues := NormalizeOrders(batch.Orders)
	costs, costIssues := NormalizeCosts(batch.Costs)

	profiles := AssignCohorts(sessions)
	firstPurchases := FirstPurchases(orders)
	cohortIssues := MissingCohorts(orders, profiles)

	var (
		engagement       models.EngagementReport
		conversion       models.ConversionReport
		conversionIssues []models.Issue
		monetization     models.MonetizationReport
		costReport       models.CostReport
	)

	// Each goroutine only reads the shared normalized inputs and writes its
	// own result variable.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		engagement = ComputeEngagement(sessions)
		return gctx.Err()
	})
	g.Go(func() error {
		conversion, conversionIssues = ComputeConversion(profiles, firstPurchases)
		return gctx.Err()
	})
	g.Go(func() error {
		monetization = ComputeMonetization(sessions, orders, profiles)
		return gctx.Err()
	})
	g.Go(func() error {
		costReport = AggregateCosts(costs)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unit, unitIssues := ComputeUnitEconomics(costReport.ByChannel, AcquiredUsers(profiles), monetization.ByChannel)

	diag := buildDiagnostics(batch.Rejected, sessionIssues, orderIssues, costIssues, cohortIssues, conversionIssues, unitIssues)
	rejected := rejectedByStream(batch.Rejected)
	diag.ExcludedSessions = len(batch.Sessions) - len(sessions) + rejected[StreamSessions]
	diag.ExcludedOrders = len(batch.Orders) - len(orders) + rejected[StreamOrders]
	diag.ExcludedCosts = len(batch.Costs) - len(costs) + rejected[StreamCosts]

	return &models.Report{
		Engagement:    engagement,
		Conversion:    conversion,
		Monetization:  monetization,
		Costs:         costReport,
		UnitEconomics: unit,
		Diagnostics:   diag,
	}, nil
}

// Fingerprint returns a stable hex digest of the batch contents.
func Fingerprint(batch models.Batch) (string, error) {
	b, err := json.Marshal(batch)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
