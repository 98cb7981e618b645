package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"tidb-nested-graphql/internal/config"
	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/sqlutil"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite"
)

const maxRetryInterval = 30 * time.Second

// dbSystemAttribute maps a dialect onto the semconv db.system attribute.
func dbSystemAttribute(dialect sqlutil.Dialect) attribute.KeyValue {
	switch dialect {
	case sqlutil.Postgres:
		return semconv.DBSystemPostgreSQL
	case sqlutil.SQLite:
		return semconv.DBSystemKey.String("sqlite")
	default:
		return semconv.DBSystemMySQL
	}
}

// connectDB opens the pool for dialect. With metrics or tracing on, the
// driver is wrapped by otelsql; the returned registration is non-nil only
// when pool stats are exported.
func connectDB(cfg *config.Config, dialect sqlutil.Dialect, logger *logging.Logger) (*sql.DB, interface{ Unregister() error }, error) {
	// The DSN names the TLS config, so it must be registered first.
	if err := cfg.Database.RegisterTLS(); err != nil {
		return nil, nil, fmt.Errorf("failed to register database TLS config: %w", err)
	}
	dsn, err := cfg.Database.DSN()
	if err != nil {
		return nil, nil, err
	}
	driver := dialect.DriverName()
	obs := cfg.Observability

	if !obs.MetricsEnabled && !obs.TracingEnabled {
		db, err := sql.Open(driver, dsn)
		return db, nil, err
	}

	system := otelsql.WithAttributes(dbSystemAttribute(dialect))
	opts := []otelsql.Option{system}
	if obs.TracingEnabled {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
	}
	db, err := otelsql.Open(driver, dsn, opts...)
	if err != nil {
		return nil, nil, err
	}

	var statsReg interface{ Unregister() error }
	if obs.MetricsEnabled {
		if statsReg, err = otelsql.RegisterDBStatsMetrics(db, system); err != nil {
			logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
			statsReg = nil
		}
	}
	logger.Info("database instrumentation enabled",
		slog.String("driver", driver),
		slog.Bool("metrics", obs.MetricsEnabled),
		slog.Bool("tracing", obs.TracingEnabled),
	)
	return db, statsReg, nil
}

// configureDatabase applies pool limits and waits for the first ping.
func configureDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB, effectiveDatabase string, dsnPresent bool) error {
	pool := cfg.Database.Pool
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	if err := waitForDatabase(ctx, cfg, logger, db); err != nil {
		return err
	}
	logger.Info("connected to database",
		slog.String("database_effective", effectiveDatabase),
		slog.Bool("dsn_present", dsnPresent),
		slog.Int("pool_max_open", pool.MaxOpen),
		slog.Int("pool_max_idle", pool.MaxIdle),
		slog.Duration("pool_max_lifetime", pool.MaxLifetime),
	)
	return nil
}

// waitForDatabase pings once when no connection timeout is configured.
// Otherwise it retries with doubling intervals until the timeout passes.
func waitForDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.Database.ConnectionTimeout
	if timeout <= 0 {
		return db.PingContext(ctx)
	}
	interval := cfg.Database.ConnectionRetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		interval = min(interval*2, maxRetryInterval)
	}
}
