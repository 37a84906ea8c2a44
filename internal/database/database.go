// Package database owns the Postgres connection pool and the schema.
package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Querier is the subset of pgx shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service represents a service that interacts with a database.
type Service interface {
	Querier

	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error

	// Health returns a map of health status information.
	Health(ctx context.Context) map[string]string

	// Migrate applies the embedded schema. It is idempotent.
	Migrate(ctx context.Context) error

	// Close terminates the pool.
	Close()
}

type service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to url and verifies the connection.
func New(ctx context.Context, url string, maxConns int32, logger *slog.Logger) (Service, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Database connected",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns)
	return &service{pool: pool, logger: logger}, nil
}

func (s *service) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.pool.Exec(ctx, sql, args...)
}

func (s *service) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return s.pool.Query(ctx, sql, args...)
}

func (s *service) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.pool.QueryRow(ctx, sql, args...)
}

func (s *service) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, fn)
}

func (s *service) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.logger.Info("Database schema applied")
	return nil
}

func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		s.logger.Error("Database health check failed", "error", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	ps := s.pool.Stat()
	stats["total_connections"] = strconv.Itoa(int(ps.TotalConns()))
	stats["idle_connections"] = strconv.Itoa(int(ps.IdleConns()))
	stats["acquired_connections"] = strconv.Itoa(int(ps.AcquiredConns()))
	stats["max_connections"] = strconv.Itoa(int(ps.MaxConns()))
	stats["empty_acquire_count"] = strconv.FormatInt(ps.EmptyAcquireCount(), 10)

	if ps.AcquiredConns() >= ps.MaxConns() {
		stats["message"] = "The database pool is exhausted."
	}

	return stats
}

func (s *service) Close() {
	s.logger.Info("Closing database pool")
	s.pool.Close()
}
