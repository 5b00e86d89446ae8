package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radiusdt/vector-metrics/internal/analytics"
	"github.com/radiusdt/vector-metrics/internal/config"
	"github.com/radiusdt/vector-metrics/internal/database"
	"github.com/radiusdt/vector-metrics/internal/httpserver"
	"github.com/radiusdt/vector-metrics/internal/metrics"
	"github.com/radiusdt/vector-metrics/internal/middleware"
	"github.com/radiusdt/vector-metrics/internal/models"
	"github.com/radiusdt/vector-metrics/internal/report"
	"github.com/radiusdt/vector-metrics/internal/storage"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("vector-metrics failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting vector-metrics",
		zap.String("env", cfg.Server.Env),
		zap.String("source", cfg.Source.Kind),
	)

	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		return err
	}

	checks := make(map[string]httpserver.HealthChecker)

	source, closeSource, err := openSource(ctx, cfg, logger, checks)
	if err != nil {
		return err
	}
	defer closeSource()

	var store storage.ReportStore = storage.NewInMemoryReportStore()
	if cfg.Redis.Enabled {
		rdb, err := database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis not available, caching reports in memory", zap.Error(err))
		} else {
			defer rdb.Close()
			checks["redis"] = rdb
			store = storage.NewRedisReportStore(rdb.Client, cfg.Report.CacheTTL)
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace)
	}
	engine := analytics.NewEngine(logger, m)

	// Initial run
	batch, err := loadWithProgress(ctx, source)
	if err != nil {
		return err
	}
	if len(batch.Rejected) > 0 {
		logger.Warn("skipped unparseable rows", zap.Int("rows", len(batch.Rejected)))
	}
	res, err := engine.Run(ctx, batch)
	if err != nil {
		return err
	}
	if err := store.SaveResult(ctx, res); err != nil {
		logger.Warn("failed to cache result", zap.Error(err))
	}
	if err := writeReport(cfg.Report.OutputPath, res, format); err != nil {
		return err
	}

	if !cfg.Server.Enabled {
		return nil
	}

	handler := httpserver.NewServer(&httpserver.Dependencies{
		Engine:  engine,
		Source:  source,
		Store:   store,
		Checks:  checks,
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

// openSource connects the configured record source and registers its health
// check.
func openSource(ctx context.Context, cfg *config.Config, logger *zap.Logger, checks map[string]httpserver.HealthChecker) (storage.RecordSource, func(), error) {
	tables := storage.Tables{
		Sessions: cfg.Source.SessionsTable,
		Orders:   cfg.Source.OrdersTable,
		Costs:    cfg.Source.CostsTable,
	}

	switch cfg.Source.Kind {
	case config.SourcePostgres:
		db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		src, err := storage.NewPostgresSource(db.Pool, tables)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		checks["postgres"] = db
		return src, db.Close, nil

	case config.SourceMySQL:
		db, err := database.NewMySQLDB(ctx, cfg.MySQL, logger)
		if err != nil {
			return nil, nil, err
		}
		src, err := storage.NewMySQLSource(db.DB, tables)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		checks["mysql"] = db
		return src, func() { db.Close() }, nil

	case config.SourceClickHouse:
		db, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			return nil, nil, err
		}
		src, err := storage.NewClickHouseSource(db.Conn, tables)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		checks["clickhouse"] = db
		return src, func() { db.Close() }, nil

	default:
		logger.Info("reading CSV exports",
			zap.String("sessions", cfg.Source.SessionsPath),
			zap.String("orders", cfg.Source.OrdersPath),
			zap.String("costs", cfg.Source.CostsPath),
		)
		return storage.NewCSVSource(cfg.Source.SessionsPath, cfg.Source.OrdersPath, cfg.Source.CostsPath), func() {}, nil
	}
}

func loadWithProgress(ctx context.Context, source storage.RecordSource) (models.Batch, error) {
	bar := progressbar.NewOptions(3,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("loading"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	batch, err := storage.LoadBatch(ctx, source, func(stage string, n int) {
		bar.Describe(fmt.Sprintf("loaded %d %s", n, stage))
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	return batch, err
}

func writeReport(path string, res *models.RunResult, format report.Format) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return report.Encode(w, res, format)
}
