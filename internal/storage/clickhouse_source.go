package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/radiusdt/vector-metrics/internal/models"
)

const (
	chSessionsQuery = `
		SELECT toString(uid), toString(device), toString(source_id),
		       toString(start_ts), toString(end_ts)
		FROM {table}
		ORDER BY uid, start_ts`

	chOrdersQuery = `
		SELECT toString(uid), toString(buy_ts), toString(revenue)
		FROM {table}
		ORDER BY uid, buy_ts`

	chCostsQuery = `
		SELECT toString(source_id), toString(dt), toString(costs)
		FROM {table}
		ORDER BY source_id, dt`
)

// ClickHouseSource loads raw records from a ClickHouse event warehouse.
type ClickHouseSource struct {
	conn   driver.Conn
	tables Tables

	rejectLog
}

// NewClickHouseSource creates a ClickHouse-backed record source.
func NewClickHouseSource(conn driver.Conn, tables Tables) (*ClickHouseSource, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &ClickHouseSource{conn: conn, tables: tables}, nil
}

func (s *ClickHouseSource) LoadSessions(ctx context.Context) ([]models.RawSession, error) {
	rows, err := s.conn.Query(ctx, render(chSessionsQuery, s.tables.Sessions))
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows, &s.rejectLog)
}

func (s *ClickHouseSource) LoadOrders(ctx context.Context) ([]models.RawOrder, error) {
	rows, err := s.conn.Query(ctx, render(chOrdersQuery, s.tables.Orders))
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows, &s.rejectLog)
}

func (s *ClickHouseSource) LoadCosts(ctx context.Context) ([]models.RawCost, error) {
	rows, err := s.conn.Query(ctx, render(chCostsQuery, s.tables.Costs))
	if err != nil {
		return nil, fmt.Errorf("failed to query costs: %w", err)
	}
	defer rows.Close()
	return scanCosts(rows, &s.rejectLog)
}
