package storage

import (
	"context"
	"fmt"
	"regexp"

	"github.com/radiusdt/vector-metrics/internal/models"
)

// =============================================
// RECORD SOURCE
// =============================================

// RecordSource loads the three raw streams of a batch.
type RecordSource interface {
	LoadSessions(ctx context.Context) ([]models.RawSession, error)
	LoadOrders(ctx context.Context) ([]models.RawOrder, error)
	LoadCosts(ctx context.Context) ([]models.RawCost, error)
}

// Load stages reported by LoadBatch.
const (
	StageSessions = "sessions"
	StageOrders   = "orders"
	StageCosts    = "costs"
)

// LoadBatch loads all three streams from src. progress, when not nil, is
// called after each stream with the stage name and record count. Rows the
// source skipped end up in Batch.Rejected.
func LoadBatch(ctx context.Context, src RecordSource, progress func(stage string, n int)) (models.Batch, error) {
	var batch models.Batch
	var err error
	if progress == nil {
		progress = func(string, int) {}
	}

	if batch.Sessions, err = src.LoadSessions(ctx); err != nil {
		return models.Batch{}, fmt.Errorf("load sessions: %w", err)
	}
	progress(StageSessions, len(batch.Sessions))

	if batch.Orders, err = src.LoadOrders(ctx); err != nil {
		return models.Batch{}, fmt.Errorf("load orders: %w", err)
	}
	progress(StageOrders, len(batch.Orders))

	if batch.Costs, err = src.LoadCosts(ctx); err != nil {
		return models.Batch{}, fmt.Errorf("load costs: %w", err)
	}
	progress(StageCosts, len(batch.Costs))

	if rr, ok := src.(RejectReporter); ok {
		batch.Rejected = rr.Rejected()
	}
	return batch, nil
}

// =============================================
// REPORT STORE
// =============================================

// ReportStore keeps run results keyed by batch fingerprint. Getters return
// nil, nil when nothing is stored.
type ReportStore interface {
	SaveResult(ctx context.Context, res *models.RunResult) error
	GetResult(ctx context.Context, fingerprint string) (*models.RunResult, error)
	LatestResult(ctx context.Context) (*models.RunResult, error)
}

// =============================================
// SQL TABLES
// =============================================

// Tables names the SQL tables the database loaders read from.
type Tables struct {
	Sessions string
	Orders   string
	Costs    string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate rejects table names that are not plain identifiers, since they
// are interpolated into queries.
func (t Tables) Validate() error {
	for _, name := range []string{t.Sessions, t.Orders, t.Costs} {
		if !identRe.MatchString(name) {
			return fmt.Errorf("invalid table name %q", name)
		}
	}
	return nil
}
