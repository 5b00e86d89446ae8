package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/radiusdt/vector-metrics/internal/config"
	"go.uber.org/zap"
)

// MySQLDB wraps the MySQL/MariaDB pool the MySQL loader reads from.
type MySQLDB struct {
	DB     *sql.DB
	logger *zap.Logger
}

// NewMySQLDB opens and pings a MySQL/MariaDB pool. cfg.DSN may be a native
// driver DSN or a mysql:// / mariadb:// URL.
func NewMySQLDB(ctx context.Context, cfg config.MySQLConfig, logger *zap.Logger) (*MySQLDB, error) {
	dsn, err := toMySQLDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	logger.Info("connected to MySQL", zap.Int("max_conns", cfg.MaxConns))
	return &MySQLDB{DB: db, logger: logger}, nil
}

// Close closes the pool.
func (m *MySQLDB) Close() error {
	if m.DB != nil {
		m.logger.Info("MySQL connection closed")
		return m.DB.Close()
	}
	return nil
}

// Health checks if MySQL is reachable.
func (m *MySQLDB) Health(ctx context.Context) error {
	return m.DB.PingContext(ctx)
}

func toMySQLDSN(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "mariadb://") && !strings.HasPrefix(dsn, "mysql://") {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	var user, pass string
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	db := strings.TrimPrefix(u.Path, "/")
	if user == "" || u.Host == "" || db == "" {
		return "", fmt.Errorf("incomplete dsn: user, host and database are required")
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC", user, pass, u.Host, db), nil
}
