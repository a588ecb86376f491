package persist

import (
	"context"
	"fmt"

	"github.com/orbitcore/server/internal/config"
	"go.uber.org/zap"
)

// Scanner reads the current row of a query.
type Scanner interface {
	Scan(dest ...any) error
}

// Executor is the blocking query collaborator. Queries always use $N
// placeholders; drivers that need something else rewrite them.
type Executor interface {
	Query(ctx context.Context, sql string, scan func(Scanner) error, args ...any) error
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	// InTx runs fn against a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(Executor) error) error
	Driver() string
	Close()
}

// Open connects to the database named by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (Executor, error) {
	switch cfg.Driver {
	case "postgres":
		return NewDB(ctx, cfg, log)
	case "sqlite":
		return OpenSQLite(ctx, cfg, log)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
