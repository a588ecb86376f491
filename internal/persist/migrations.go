package persist

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations applies all pending database migrations.
func RunMigrations(ctx context.Context, exec Executor) error {
	var (
		db      *sql.DB
		dialect string
	)
	switch e := exec.(type) {
	case *DB:
		db = stdlib.OpenDBFromPool(e.Pool)
		defer db.Close()
		dialect = "postgres"
	case *SQLDB:
		db = e.DB
		dialect = "sqlite3"
	default:
		return fmt.Errorf("migrations: unsupported executor %T", exec)
	}

	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
