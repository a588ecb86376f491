package world

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/orbitcore/server/internal/core/ident"
	"go.uber.org/zap"
)

const (
	sectorInset       = 0.1
	bonusBoxRespawn   = 45 * time.Second
	bonusBoxCreditMin = 100
)

// respawn is a pending re-seed of a swept entity in its home sector.
type respawn struct {
	timer  IntervalTimer
	sector GridIndex
	mob    *MobTemplate
	ore    *OreTemplate
	box    bool
}

// PoolManager seeds the ambient population of a map and is the only place
// ambient entities are deleted.
type PoolManager struct {
	m   *Map
	log *zap.Logger
	rng *rand.Rand

	mobs  *Pool[*Mob]
	ores  *Pool[*Ore]
	boxes *Pool[*BonusBox]

	respawns []*respawn
	loaded   bool
}

func newPoolManager(m *Map) *PoolManager {
	seed := m.env.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &PoolManager{
		m:     m,
		log:   m.log.Named("pool"),
		rng:   rand.New(rand.NewSource(seed ^ int64(m.spec.ID))),
		mobs:  newPool[*Mob](),
		ores:  newPool[*Ore](),
		boxes: newPool[*BonusBox](),
	}
}

func (pm *PoolManager) Mobs() *Pool[*Mob]            { return pm.mobs }
func (pm *PoolManager) Ores() *Pool[*Ore]            { return pm.ores }
func (pm *PoolManager) BonusBoxes() *Pool[*BonusBox] { return pm.boxes }

// PendingRespawns is the number of swept entities waiting to re-seed.
func (pm *PoolManager) PendingRespawns() int { return len(pm.respawns) }

// Load seeds every sector of the map. Each mob template associated with the
// map, each ore allowed by the map's region class and the map's bonus box
// chance are rolled once per sector. Unknown templates are logged and skipped.
func (pm *PoolManager) Load(ctx context.Context) error {
	if pm.loaded {
		return nil
	}
	env := pm.m.env
	var mapMobs []MapMob
	if env.Templates != nil {
		var err error
		mapMobs, err = env.Templates.MapMobs(ctx, pm.m.ID())
		if err != nil {
			return fmt.Errorf("map %d mobs: %w", pm.m.ID(), err)
		}
	}

	type seedMob struct {
		t      *MobTemplate
		chance float64
	}
	var mobs []seedMob
	for _, mm := range mapMobs {
		t := env.Catalog.Mob(mm.MobID)
		if t == nil {
			pm.log.Warn("unknown mob template", zap.Uint32("mob", mm.MobID))
			continue
		}
		mobs = append(mobs, seedMob{t: t, chance: mm.SpawnChance})
	}

	class := env.Script.OreRegionClass(pm.m.ID())
	var ores []*OreTemplate
	for _, o := range env.Catalog.Ores() {
		if o.Region.Allows(class) {
			ores = append(ores, o)
		}
	}

	for x := 0; x < pm.m.cells; x++ {
		for y := 0; y < pm.m.cells; y++ {
			sector := GridIndex{X: x, Y: y}
			for _, sm := range mobs {
				if pm.roll(sm.chance) {
					pm.spawnMob(sm.t, sector)
				}
			}
			for _, o := range ores {
				if pm.roll(o.SpawnChance) {
					pm.spawnOre(o, sector)
				}
			}
			if pm.roll(pm.m.spec.BonusBoxChance) {
				pm.spawnBonusBox(sector)
			}
		}
	}
	pm.loaded = true
	pm.log.Info("pools seeded",
		zap.Int("mobs", pm.mobs.Len()),
		zap.Int("ores", pm.ores.Len()),
		zap.Int("boxes", pm.boxes.Len()),
		zap.String("region", string(class)),
	)
	return nil
}

func (pm *PoolManager) roll(chance float64) bool {
	if chance <= 0 {
		return false
	}
	return chance >= 1 || pm.rng.Float64() < chance
}

// sectorPoint picks a random point inside the sector, kept away from its edges.
func (pm *PoolManager) sectorPoint(sector GridIndex) Vector2 {
	cs := pm.m.cellSize
	span := 1 - 2*sectorInset
	return Vector2{
		X: cs.X*float64(sector.X) + cs.X*(sectorInset+pm.rng.Float64()*span),
		Y: cs.Y*float64(sector.Y) + cs.Y*(sectorInset+pm.rng.Float64()*span),
	}
}

func (pm *PoolManager) spawnMob(t *MobTemplate, sector GridIndex) *Mob {
	env := pm.m.env
	stats := env.Script.MobStats(t, pm.m.ID())
	id := env.IDs.Next(ident.KindMob, t.ID)
	mob := newMob(id, t, stats, pm.sectorPoint(sector), sector, true, env.Clock, env.Settings.MobRoamInterval)
	pm.insert(mob, func(key GridIndex) { pm.mobs.add(key, mob) })
	return mob
}

func (pm *PoolManager) spawnOre(t *OreTemplate, sector GridIndex) *Ore {
	env := pm.m.env
	id := env.IDs.Next(ident.KindOre, t.ID)
	ore := newOre(id, t, pm.sectorPoint(sector), sector, env.Clock)
	pm.insert(ore, func(key GridIndex) { pm.ores.add(key, ore) })
	return ore
}

func (pm *PoolManager) spawnBonusBox(sector GridIndex) *BonusBox {
	env := pm.m.env
	cargo := Resources{Credits: int64(bonusBoxCreditMin * (1 + pm.rng.Intn(10)))}
	if pm.rng.Intn(4) == 0 {
		cargo.Uridium = int64(5 * (1 + pm.rng.Intn(10)))
	}
	id := env.IDs.Next(ident.KindBonusBox, uint32(BoxBonus))
	box := newBonusBox(id, BoxBonus, cargo, 0, pm.sectorPoint(sector), sector, true, 0, env.Clock)
	pm.insert(box, func(key GridIndex) { pm.boxes.add(key, box) })
	return box
}

// insert places e on the map and files it under the grid it landed in.
func (pm *PoolManager) insert(e Ambient, file func(GridIndex)) {
	pm.m.Add(e)
	file(pm.m.poolKey(e.Base().cell))
}

// AddBonusBox drops a box at the victim's position holding a snapshot of the
// victim's cargo. Until the owner grace runs out only owner may loot it.
// Must run on the map's worker.
func (pm *PoolManager) AddBonusBox(victim Entity, boxType BoxType, owner Entity) *BonusBox {
	env := pm.m.env
	v := victim.Base()
	var cargo Resources
	if ch, ok := victim.(CargoHolder); ok {
		cargo = ch.Cargo()
	}
	var ownerID ident.ID
	if owner != nil {
		ownerID = owner.Base().ID()
	}
	pos := v.Position()
	id := env.IDs.Next(ident.KindBonusBox, uint32(boxType))
	box := newBonusBox(id, boxType, cargo, ownerID, pos, pm.m.GridIndexFor(pos), false, env.Settings.BonusBoxOwnerGrace, env.Clock)
	pm.insert(box, func(key GridIndex) { pm.boxes.add(key, box) })
	pm.log.Debug("bonus box dropped", zap.Stringer("box", box), zap.Stringer("victim", v), zap.Stringer("owner", ownerID))
	return box
}

// RemoveBonusBox hands a box to the next sweep.
func (pm *PoolManager) RemoveBonusBox(box *BonusBox) {
	box.ScheduleForDelete()
}

// Update sweeps every pool, removing flagged entities from the pool, their
// grid and the map, then runs respawn timers.
func (pm *PoolManager) Update(diff time.Duration) {
	for _, mob := range pm.mobs.sweep() {
		pm.m.Remove(mob)
		if mob.seeded() && mob.template.RespawnDelay > 0 {
			pm.queueRespawn(&respawn{timer: NewIntervalTimer(mob.template.RespawnDelay), sector: mob.sector(), mob: mob.template})
		}
	}
	for _, ore := range pm.ores.sweep() {
		pm.m.Remove(ore)
		if ore.template.RespawnDelay > 0 {
			pm.queueRespawn(&respawn{timer: NewIntervalTimer(ore.template.RespawnDelay), sector: ore.sector(), ore: ore.template})
		}
	}
	for _, box := range pm.boxes.sweep() {
		pm.m.Remove(box)
		if box.seeded() {
			pm.queueRespawn(&respawn{timer: NewIntervalTimer(bonusBoxRespawn), sector: box.sector(), box: true})
		}
	}

	if len(pm.respawns) == 0 {
		return
	}
	kept := pm.respawns[:0]
	for _, r := range pm.respawns {
		r.timer.Update(diff)
		if !r.timer.Passed() {
			kept = append(kept, r)
			continue
		}
		switch {
		case r.mob != nil:
			pm.spawnMob(r.mob, r.sector)
		case r.ore != nil:
			pm.spawnOre(r.ore, r.sector)
		case r.box:
			pm.spawnBonusBox(r.sector)
		}
	}
	pm.respawns = kept
}

func (pm *PoolManager) queueRespawn(r *respawn) {
	pm.respawns = append(pm.respawns, r)
}

// relocate refiles an ambient entity after it crossed into another grid.
func (pm *PoolManager) relocate(e Entity, from, to GridIndex) {
	if from == to {
		return
	}
	id := e.Base().ID()
	switch e.(type) {
	case *Mob:
		pm.mobs.rekey(from, to, id)
	case *Ore:
		pm.ores.rekey(from, to, id)
	case *BonusBox:
		pm.boxes.rekey(from, to, id)
	}
}

// Counts returns the live population per pool.
func (pm *PoolManager) Counts() (mobs, ores, boxes int) {
	return pm.mobs.Len(), pm.ores.Len(), pm.boxes.Len()
}
