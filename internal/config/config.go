package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Source kinds.
const (
	SourceCSV        = "csv"
	SourcePostgres   = "postgres"
	SourceMySQL      = "mysql"
	SourceClickHouse = "clickhouse"
)

// Config holds all configuration for the vector-metrics application.
type Config struct {
	Server     ServerConfig
	Source     SourceConfig
	Database   DatabaseConfig
	MySQL      MySQLConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Report     ReportConfig
}

type ServerConfig struct {
	Enabled         bool
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// SourceConfig selects where raw records are loaded from.
type SourceConfig struct {
	Kind         string
	SessionsPath string
	OrdersPath   string
	CostsPath    string

	// Table names for the SQL sources
	SessionsTable string
	OrdersTable   string
	CostsTable    string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// MySQLConfig accepts either a native go-sql-driver DSN or a
// mysql:// / mariadb:// URL.
type MySQLConfig struct {
	DSN      string
	MaxConns int
}

type ClickHouseConfig struct {
	Addrs       []string
	Database    string
	User        string
	Password    string
	DialTimeout time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
	Path      string
}

// ReportConfig controls report output and caching.
type ReportConfig struct {
	Format     string
	OutputPath string
	CacheTTL   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Enabled:         getBoolEnv("VECTOR_METRICS_SERVER_ENABLED", false),
			Addr:            getEnv("VECTOR_METRICS_HTTP_ADDR", ":8080"),
			Env:             getEnv("VECTOR_METRICS_ENV", "development"),
			ShutdownTimeout: getDurationEnv("VECTOR_METRICS_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Source: SourceConfig{
			Kind:          getEnv("VECTOR_METRICS_SOURCE", SourceCSV),
			SessionsPath:  getEnv("VECTOR_METRICS_SESSIONS_PATH", "visits_log_us.csv"),
			OrdersPath:    getEnv("VECTOR_METRICS_ORDERS_PATH", "orders_log_us.csv"),
			CostsPath:     getEnv("VECTOR_METRICS_COSTS_PATH", "costs_us.csv"),
			SessionsTable: getEnv("VECTOR_METRICS_SESSIONS_TABLE", "visits"),
			OrdersTable:   getEnv("VECTOR_METRICS_ORDERS_TABLE", "orders"),
			CostsTable:    getEnv("VECTOR_METRICS_COSTS_TABLE", "costs"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("VECTOR_METRICS_DB_HOST", "localhost"),
			Port:     getIntEnv("VECTOR_METRICS_DB_PORT", 5432),
			User:     getEnv("VECTOR_METRICS_DB_USER", "vectormetrics"),
			Password: getEnv("VECTOR_METRICS_DB_PASSWORD", ""),
			DBName:   getEnv("VECTOR_METRICS_DB_NAME", "vectormetrics"),
			SSLMode:  getEnv("VECTOR_METRICS_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("VECTOR_METRICS_DB_MAX_CONNS", 10),
			MinConns: getIntEnv("VECTOR_METRICS_DB_MIN_CONNS", 1),
		},
		MySQL: MySQLConfig{
			DSN:      getEnv("VECTOR_METRICS_MYSQL_DSN", ""),
			MaxConns: getIntEnv("VECTOR_METRICS_MYSQL_MAX_CONNS", 10),
		},
		ClickHouse: ClickHouseConfig{
			Addrs:       getSliceEnv("VECTOR_METRICS_CLICKHOUSE_ADDRS", []string{"localhost:9000"}),
			Database:    getEnv("VECTOR_METRICS_CLICKHOUSE_DB", "default"),
			User:        getEnv("VECTOR_METRICS_CLICKHOUSE_USER", "default"),
			Password:    getEnv("VECTOR_METRICS_CLICKHOUSE_PASSWORD", ""),
			DialTimeout: getDurationEnv("VECTOR_METRICS_CLICKHOUSE_DIAL_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("VECTOR_METRICS_REDIS_ENABLED", false),
			Addr:     getEnv("VECTOR_METRICS_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("VECTOR_METRICS_REDIS_PASSWORD", ""),
			DB:       getIntEnv("VECTOR_METRICS_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("VECTOR_METRICS_AUTH_ENABLED", false),
			MasterKey: getEnv("VECTOR_METRICS_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("VECTOR_METRICS_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("VECTOR_METRICS_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("VECTOR_METRICS_RATE_LIMIT_RPS", 50),
			Burst:   getIntEnv("VECTOR_METRICS_RATE_LIMIT_BURST", 10),
		},
		Log: LogConfig{
			Level:  getEnv("VECTOR_METRICS_LOG_LEVEL", "info"),
			Format: getEnv("VECTOR_METRICS_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled:   getBoolEnv("VECTOR_METRICS_METRICS_ENABLED", true),
			Namespace: getEnv("VECTOR_METRICS_METRICS_NAMESPACE", "vector_metrics"),
			Path:      getEnv("VECTOR_METRICS_METRICS_PATH", "/metrics"),
		},
		Report: ReportConfig{
			Format:     getEnv("VECTOR_METRICS_REPORT_FORMAT", "json"),
			OutputPath: getEnv("VECTOR_METRICS_REPORT_OUTPUT", ""),
			CacheTTL:   getDurationEnv("VECTOR_METRICS_REPORT_CACHE_TTL", 24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceCSV, SourcePostgres, SourceClickHouse:
	case SourceMySQL:
		if c.MySQL.DSN == "" {
			return fmt.Errorf("VECTOR_METRICS_MYSQL_DSN is required for the mysql source")
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source.Kind)
	}
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("VECTOR_METRICS_API_KEY_MASTER is required when auth is enabled")
	}
	if c.Report.Format != "json" && c.Report.Format != "yaml" {
		return fmt.Errorf("unknown report format %q", c.Report.Format)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
