package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/orbitcore/server/internal/world"
)

// TemplateRepo reads the static spawn tables.
type TemplateRepo struct {
	db Executor
}

func NewTemplateRepo(db Executor) *TemplateRepo {
	return &TemplateRepo{db: db}
}

func (r *TemplateRepo) MobTemplates(ctx context.Context) ([]world.MobTemplate, error) {
	var result []world.MobTemplate
	err := r.db.Query(ctx,
		`SELECT id, name, hp, shield, damage, speed, aggressive,
		        loot_credits, loot_uridium, loot_experience, loot_honor, respawn_ms
		 FROM mob_templates
		 ORDER BY id`,
		func(s Scanner) error {
			var (
				t       world.MobTemplate
				respawn int64
			)
			if err := s.Scan(
				&t.ID, &t.Name, &t.HP, &t.Shield, &t.Damage, &t.Speed, &t.Aggressive,
				&t.Loot.Credits, &t.Loot.Uridium, &t.Loot.Experience, &t.Loot.Honor, &respawn,
			); err != nil {
				return err
			}
			t.RespawnDelay = time.Duration(respawn) * time.Millisecond
			result = append(result, t)
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("load mob templates: %w", err)
	}
	return result, nil
}

func (r *TemplateRepo) OreTemplates(ctx context.Context) ([]world.OreTemplate, error) {
	var result []world.OreTemplate
	err := r.db.Query(ctx,
		`SELECT id, name, region, spawn_chance, yield, respawn_ms
		 FROM ore_templates
		 ORDER BY id`,
		func(s Scanner) error {
			var (
				t       world.OreTemplate
				region  string
				yield   int64
				respawn int64
			)
			if err := s.Scan(&t.ID, &t.Name, &region, &t.SpawnChance, &yield, &respawn); err != nil {
				return err
			}
			t.Region = world.RegionClass(region)
			t.Yield = world.Resources{Ore: map[uint32]int64{t.ID: yield}}
			t.RespawnDelay = time.Duration(respawn) * time.Millisecond
			result = append(result, t)
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("load ore templates: %w", err)
	}
	return result, nil
}

// MapMobs lists the mob templates seeded on a map with their per-sector chance.
func (r *TemplateRepo) MapMobs(ctx context.Context, mapID int32) ([]world.MapMob, error) {
	var result []world.MapMob
	err := r.db.Query(ctx,
		`SELECT mob_id, spawn_chance FROM map_mobs WHERE map_id = $1 ORDER BY mob_id`,
		func(s Scanner) error {
			var mm world.MapMob
			if err := s.Scan(&mm.MobID, &mm.SpawnChance); err != nil {
				return err
			}
			result = append(result, mm)
			return nil
		},
		mapID,
	)
	if err != nil {
		return nil, fmt.Errorf("load mobs of map %d: %w", mapID, err)
	}
	return result, nil
}

// SaveMobTemplate upserts one template. Used by tooling and tests.
func (r *TemplateRepo) SaveMobTemplate(ctx context.Context, t world.MobTemplate) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO mob_templates (id, name, hp, shield, damage, speed, aggressive,
		        loot_credits, loot_uridium, loot_experience, loot_honor, respawn_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		        name = excluded.name, hp = excluded.hp, shield = excluded.shield,
		        damage = excluded.damage, speed = excluded.speed, aggressive = excluded.aggressive,
		        loot_credits = excluded.loot_credits, loot_uridium = excluded.loot_uridium,
		        loot_experience = excluded.loot_experience, loot_honor = excluded.loot_honor,
		        respawn_ms = excluded.respawn_ms`,
		t.ID, t.Name, t.HP, t.Shield, t.Damage, t.Speed, t.Aggressive,
		t.Loot.Credits, t.Loot.Uridium, t.Loot.Experience, t.Loot.Honor, t.RespawnDelay.Milliseconds(),
	)
	return err
}

func (r *TemplateRepo) SaveOreTemplate(ctx context.Context, t world.OreTemplate) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ore_templates (id, name, region, spawn_chance, yield, respawn_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		        name = excluded.name, region = excluded.region, spawn_chance = excluded.spawn_chance,
		        yield = excluded.yield, respawn_ms = excluded.respawn_ms`,
		t.ID, t.Name, string(t.Region), t.SpawnChance, t.Yield.Ore[t.ID], t.RespawnDelay.Milliseconds(),
	)
	return err
}

func (r *TemplateRepo) SaveMapMob(ctx context.Context, mapID int32, mm world.MapMob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO map_mobs (map_id, mob_id, spawn_chance) VALUES ($1, $2, $3)
		 ON CONFLICT (map_id, mob_id) DO UPDATE SET spawn_chance = excluded.spawn_chance`,
		mapID, mm.MobID, mm.SpawnChance,
	)
	return err
}
