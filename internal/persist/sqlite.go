package persist

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/orbitcore/server/internal/config"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLDB runs the same queries against an embedded SQLite file. Used for
// development servers and tests.
type SQLDB struct {
	DB  *sql.DB
	log *zap.Logger
}

func OpenSQLite(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*SQLDB, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.DSN, err)
	}
	// one writer; SQLite serialises writes anyway
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	return &SQLDB{DB: db, log: log.Named("db")}, nil
}

func (db *SQLDB) Driver() string { return "sqlite" }

func (db *SQLDB) Close() {
	if err := db.DB.Close(); err != nil {
		db.log.Warn("close sqlite", zap.Error(err))
	}
}

// rebind turns $N placeholders into SQLite's ?N form.
func rebind(query string) string {
	if !strings.Contains(query, "$") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// sqlQuerier is what both *sql.DB and *sql.Tx offer.
type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sqlQuery(ctx context.Context, q sqlQuerier, query string, scan func(Scanner) error, args ...any) error {
	rows, err := q.QueryContext(ctx, rebind(query), args...)
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

func sqlExec(ctx context.Context, q sqlQuerier, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *SQLDB) Query(ctx context.Context, query string, scan func(Scanner) error, args ...any) error {
	return sqlQuery(ctx, db.DB, query, scan, args...)
}

func (db *SQLDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return sqlExec(ctx, db.DB, query, args...)
}

func (db *SQLDB) InTx(ctx context.Context, fn func(Executor) error) error {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Driver() string { return "sqlite" }
func (t *sqlTx) Close()         {}

func (t *sqlTx) Query(ctx context.Context, query string, scan func(Scanner) error, args ...any) error {
	return sqlQuery(ctx, t.tx, query, scan, args...)
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return sqlExec(ctx, t.tx, query, args...)
}

func (t *sqlTx) InTx(_ context.Context, fn func(Executor) error) error {
	return fn(t)
}
