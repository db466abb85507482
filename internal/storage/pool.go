// Package storage provides the PostgreSQL storage layer for Critterdex.
//
// It manages connection pooling (via pgxpool through PgBouncer),
// a dedicated connection for LISTEN/NOTIFY (direct to Postgres),
// and query methods for all tables.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// DB wraps a pgxpool.Pool for normal queries (via PgBouncer)
// and a dedicated pgx.Conn for LISTEN/NOTIFY (direct to Postgres).
type DB struct {
	pool       *pgxpool.Pool
	notifyConn *pgx.Conn
	logger     *slog.Logger
}

// New creates a new DB with a connection pool.
// poolDSN should point to PgBouncer (or directly to Postgres in dev).
// notifyDSN should point directly to Postgres for LISTEN/NOTIFY support.
func New(ctx context.Context, poolDSN, notifyDSN string, logger *slog.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(poolDSN)
	if err != nil {
		return nil, fmt.Errorf("storage: parse pool DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	var notifyConn *pgx.Conn
	if notifyDSN != "" {
		notifyConn, err = pgx.Connect(ctx, notifyDSN)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("storage: connect notify: %w", err)
		}
	}

	return &DB{
		pool:       pool,
		notifyConn: notifyConn,
		logger:     logger,
	}, nil
}

// HasNotifyConn reports whether a LISTEN/NOTIFY connection is configured.
func (db *DB) HasNotifyConn() bool {
	return db.notifyConn != nil
}

// RegisterPoolMetrics registers OTEL observable gauges for the connection
// pool. Call after telemetry init; failures only log.
func (db *DB) RegisterPoolMetrics() {
	meter := otel.GetMeterProvider().Meter("critterdex/storage")

	total, err1 := meter.Int64ObservableGauge("db.pool.connections.total")
	idle, err2 := meter.Int64ObservableGauge("db.pool.connections.idle")
	acquired, err3 := meter.Int64ObservableGauge("db.pool.connections.acquired")
	if err1 != nil || err2 != nil || err3 != nil {
		db.logger.Warn("storage: create pool gauges", "errors", []error{err1, err2, err3})
		return
	}

	_, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stat := db.pool.Stat()
		o.ObserveInt64(total, int64(stat.TotalConns()))
		o.ObserveInt64(idle, int64(stat.IdleConns()))
		o.ObserveInt64(acquired, int64(stat.AcquiredConns()))
		return nil
	}, total, idle, acquired)
	if err != nil {
		db.logger.Warn("storage: register pool metrics", "error", err)
	}
}

// Ping checks connectivity to the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close shuts down the connection pool and notify connection.
func (db *DB) Close(ctx context.Context) {
	db.pool.Close()
	if db.notifyConn != nil {
		if err := db.notifyConn.Close(ctx); err != nil {
			db.logger.Warn("storage: close notify connection", "error", err)
		}
	}
}
