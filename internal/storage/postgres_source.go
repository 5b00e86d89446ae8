package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/vector-metrics/internal/models"
)

const (
	pgSessionsQuery = `
		SELECT uid::text, device, source_id::text,
		       to_char(start_ts, 'YYYY-MM-DD HH24:MI:SS'),
		       to_char(end_ts, 'YYYY-MM-DD HH24:MI:SS')
		FROM {table}
		ORDER BY uid, start_ts`

	pgOrdersQuery = `
		SELECT uid::text, to_char(buy_ts, 'YYYY-MM-DD HH24:MI:SS'), revenue::text
		FROM {table}
		ORDER BY uid, buy_ts`

	pgCostsQuery = `
		SELECT source_id::text, to_char(dt, 'YYYY-MM-DD'), costs::text
		FROM {table}
		ORDER BY source_id, dt`
)

// PostgresSource loads raw records from PostgreSQL.
type PostgresSource struct {
	pool   *pgxpool.Pool
	tables Tables

	rejectLog
}

// NewPostgresSource creates a PostgreSQL-backed record source.
func NewPostgresSource(pool *pgxpool.Pool, tables Tables) (*PostgresSource, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &PostgresSource{pool: pool, tables: tables}, nil
}

func (s *PostgresSource) LoadSessions(ctx context.Context) ([]models.RawSession, error) {
	rows, err := s.pool.Query(ctx, render(pgSessionsQuery, s.tables.Sessions))
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows, &s.rejectLog)
}

func (s *PostgresSource) LoadOrders(ctx context.Context) ([]models.RawOrder, error) {
	rows, err := s.pool.Query(ctx, render(pgOrdersQuery, s.tables.Orders))
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows, &s.rejectLog)
}

func (s *PostgresSource) LoadCosts(ctx context.Context) ([]models.RawCost, error) {
	rows, err := s.pool.Query(ctx, render(pgCostsQuery, s.tables.Costs))
	if err != nil {
		return nil, fmt.Errorf("failed to query costs: %w", err)
	}
	defer rows.Close()
	return scanCosts(rows, &s.rejectLog)
}
