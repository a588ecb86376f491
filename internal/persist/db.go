package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orbitcore/server/internal/config"
	"go.uber.org/zap"
)

// DB wraps a pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

func NewDB(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{Pool: pool, log: log.Named("db")}, nil
}

func (db *DB) Driver() string { return "postgres" }

func (db *DB) Close() {
	db.Pool.Close()
}

// pgxQuerier is what both the pool and a transaction offer.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func pgxQuery(ctx context.Context, q pgxQuerier, sql string, scan func(Scanner) error, args ...any) error {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func pgxExec(ctx context.Context, q pgxQuerier, sql string, args ...any) (int64, error) {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (db *DB) Query(ctx context.Context, sql string, scan func(Scanner) error, args ...any) error {
	return pgxQuery(ctx, db.Pool, sql, scan, args...)
}

func (db *DB) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return pgxExec(ctx, db.Pool, sql, args...)
}

func (db *DB) InTx(ctx context.Context, fn func(Executor) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Driver() string { return "postgres" }
func (t *pgTx) Close()         {}

func (t *pgTx) Query(ctx context.Context, sql string, scan func(Scanner) error, args ...any) error {
	return pgxQuery(ctx, t.tx, sql, scan, args...)
}

func (t *pgTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return pgxExec(ctx, t.tx, sql, args...)
}

// InTx inside a transaction just reuses it.
func (t *pgTx) InTx(_ context.Context, fn func(Executor) error) error {
	return fn(t)
}
