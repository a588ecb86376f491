package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/orbitcore/server/internal/world"
)

// PlayerRepo persists where each account's ship is.
type PlayerRepo struct {
	db  Executor
	now func() time.Time
}

func NewPlayerRepo(db Executor) *PlayerRepo {
	return &PlayerRepo{db: db, now: time.Now}
}

const upsertPosition = `INSERT INTO players (account_id, name, map_id, x, y, updated_ms)
	 VALUES ($1, $2, $3, $4, $5, $6)
	 ON CONFLICT (account_id) DO UPDATE SET
	        name = excluded.name, map_id = excluded.map_id,
	        x = excluded.x, y = excluded.y, updated_ms = excluded.updated_ms`

func (r *PlayerRepo) SavePosition(ctx context.Context, pos world.PlayerPosition) error {
	if _, err := r.db.Exec(ctx, upsertPosition,
		int64(pos.AccountID), pos.Name, pos.MapID, pos.X, pos.Y, r.now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("save position of %d: %w", pos.AccountID, err)
	}
	return nil
}

// SavePositions writes a batch in one transaction.
func (r *PlayerRepo) SavePositions(ctx context.Context, batch []world.PlayerPosition) error {
	if len(batch) == 0 {
		return nil
	}
	stamp := r.now().UnixMilli()
	return r.db.InTx(ctx, func(tx Executor) error {
		for _, pos := range batch {
			if _, err := tx.Exec(ctx, upsertPosition,
				int64(pos.AccountID), pos.Name, pos.MapID, pos.X, pos.Y, stamp,
			); err != nil {
				return fmt.Errorf("save position of %d: %w", pos.AccountID, err)
			}
		}
		return nil
	})
}

// LoadPosition reports false when the account has never been saved.
func (r *PlayerRepo) LoadPosition(ctx context.Context, accountID uint32) (world.PlayerPosition, bool, error) {
	pos := world.PlayerPosition{AccountID: accountID}
	found := false
	err := r.db.Query(ctx,
		`SELECT name, map_id, x, y FROM players WHERE account_id = $1`,
		func(s Scanner) error {
			found = true
			return s.Scan(&pos.Name, &pos.MapID, &pos.X, &pos.Y)
		},
		int64(accountID),
	)
	if err != nil {
		return pos, false, fmt.Errorf("load position of %d: %w", accountID, err)
	}
	return pos, found, nil
}
