package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/radiusdt/vector-metrics/internal/models"
)

const (
	mysqlSessionsQuery = `
		SELECT CAST(uid AS CHAR), device, CAST(source_id AS CHAR),
		       DATE_FORMAT(start_ts, '%Y-%m-%d %H:%i:%s'),
		       DATE_FORMAT(end_ts, '%Y-%m-%d %H:%i:%s')
		FROM {table}
		ORDER BY uid, start_ts`

	mysqlOrdersQuery = `
		SELECT CAST(uid AS CHAR), DATE_FORMAT(buy_ts, '%Y-%m-%d %H:%i:%s'), CAST(revenue AS CHAR)
		FROM {table}
		ORDER BY uid, buy_ts`

	mysqlCostsQuery = `
		SELECT CAST(source_id AS CHAR), DATE_FORMAT(dt, '%Y-%m-%d'), CAST(costs AS CHAR)
		FROM {table}
		ORDER BY source_id, dt`
)

// MySQLSource loads raw records from MySQL or MariaDB.
type MySQLSource struct {
	db     *sql.DB
	tables Tables

	rejectLog
}

// NewMySQLSource creates a MySQL-backed record source.
func NewMySQLSource(db *sql.DB, tables Tables) (*MySQLSource, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &MySQLSource{db: db, tables: tables}, nil
}

func (s *MySQLSource) LoadSessions(ctx context.Context) ([]models.RawSession, error) {
	rows, err := s.db.QueryContext(ctx, render(mysqlSessionsQuery, s.tables.Sessions))
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows, &s.rejectLog)
}

func (s *MySQLSource) LoadOrders(ctx context.Context) ([]models.RawOrder, error) {
	rows, err := s.db.QueryContext(ctx, render(mysqlOrdersQuery, s.tables.Orders))
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows, &s.rejectLog)
}

func (s *MySQLSource) LoadCosts(ctx context.Context) ([]models.RawCost, error) {
	rows, err := s.db.QueryContext(ctx, render(mysqlCostsQuery, s.tables.Costs))
	if err != nil {
		return nil, fmt.Errorf("failed to query costs: %w", err)
	}
	defer rows.Close()
	return scanCosts(rows, &s.rejectLog)
}
