package persist

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/orbitcore/server/internal/config"
	"github.com/orbitcore/server/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openTestDB(t *testing.T) *SQLDB {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "orbit.db"),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, RunMigrations(ctx, db))
	return db
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT 1", rebind("SELECT 1"))
	assert.Equal(t, "WHERE a = ?1 AND b = ?12", rebind("WHERE a = $1 AND b = $12"))
	assert.Equal(t, "SELECT '$x'", rebind("SELECT '$x'"))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "oracle")
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, RunMigrations(context.Background(), db))
}

func TestTemplateRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewTemplateRepo(openTestDB(t))

	streuner := world.MobTemplate{
		ID: 1, Name: "Streuner", HP: 800, Shield: 400, Damage: 20, Speed: 320, Aggressive: true,
		Loot:         world.Resources{Credits: 400, Uridium: 1, Experience: 400, Honor: 2},
		RespawnDelay: 30 * time.Second,
	}
	lordakia := world.MobTemplate{ID: 2, Name: "Lordakia", HP: 2000, Speed: 280, RespawnDelay: time.Minute}
	require.NoError(t, repo.SaveMobTemplate(ctx, lordakia))
	require.NoError(t, repo.SaveMobTemplate(ctx, streuner))
	streuner.HP = 900
	require.NoError(t, repo.SaveMobTemplate(ctx, streuner))

	mobs, err := repo.MobTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, mobs, 2)
	assert.Equal(t, streuner, mobs[0])
	assert.Equal(t, lordakia, mobs[1])

	ore := world.OreTemplate{
		ID: 3, Name: "Terbium", Region: world.RegionLower, SpawnChance: 0.25,
		Yield: world.Resources{Ore: map[uint32]int64{3: 2}}, RespawnDelay: 20 * time.Second,
	}
	require.NoError(t, repo.SaveOreTemplate(ctx, ore))
	ores, err := repo.OreTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, ores, 1)
	assert.Equal(t, ore, ores[0])

	require.NoError(t, repo.SaveMapMob(ctx, 1, world.MapMob{MobID: 2, SpawnChance: 0.5}))
	require.NoError(t, repo.SaveMapMob(ctx, 1, world.MapMob{MobID: 1, SpawnChance: 0.1}))
	require.NoError(t, repo.SaveMapMob(ctx, 2, world.MapMob{MobID: 1, SpawnChance: 1}))
	mapMobs, err := repo.MapMobs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []world.MapMob{{MobID: 1, SpawnChance: 0.1}, {MobID: 2, SpawnChance: 0.5}}, mapMobs)

	none, err := repo.MapMobs(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMapMobRequiresTemplate(t *testing.T) {
	repo := NewTemplateRepo(openTestDB(t))
	assert.Error(t, repo.SaveMapMob(context.Background(), 1, world.MapMob{MobID: 77, SpawnChance: 1}))
}

func TestPlayerRepoUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewPlayerRepo(openTestDB(t))

	_, found, err := repo.LoadPosition(ctx, 7)
	require.NoError(t, err)
	assert.False(t, found)

	first := world.PlayerPosition{AccountID: 7, Name: "pilot", MapID: 1, X: 1000, Y: 1000}
	require.NoError(t, repo.SavePosition(ctx, first))
	moved := world.PlayerPosition{AccountID: 7, Name: "pilot", MapID: 2, X: 19000, Y: 12000}
	require.NoError(t, repo.SavePosition(ctx, moved))

	got, found, err := repo.LoadPosition(ctx, 7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, moved, got)
}

func TestPlayerRepoBatch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewPlayerRepo(db)

	batch := []world.PlayerPosition{
		{AccountID: 1, Name: "a", MapID: 1, X: 1, Y: 2},
		{AccountID: 2, Name: "b", MapID: 3, X: 3, Y: 4},
		{AccountID: 1, Name: "a", MapID: 5, X: 5, Y: 6},
	}
	require.NoError(t, repo.SavePositions(ctx, batch))
	require.NoError(t, repo.SavePositions(ctx, nil))

	var n int
	require.NoError(t, db.Query(ctx, `SELECT COUNT(*) FROM players`, func(s Scanner) error {
		return s.Scan(&n)
	}))
	assert.Equal(t, 2, n)

	got, _, err := repo.LoadPosition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, batch[2], got)
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewPlayerRepo(db)

	err := db.InTx(ctx, func(tx Executor) error {
		if err := NewPlayerRepo(tx).SavePosition(ctx, world.PlayerPosition{AccountID: 9, Name: "x", MapID: 1}); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO map_mobs (map_id, mob_id, spawn_chance) VALUES ($1, $2, $3)`, 1, 404, 1.0)
		return err
	})
	require.Error(t, err)

	_, found, err := repo.LoadPosition(ctx, 9)
	require.NoError(t, err)
	assert.False(t, found)
}
