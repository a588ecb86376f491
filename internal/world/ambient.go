package world

import (
	"sync"
	"time"

	"github.com/orbitcore/server/internal/core/ident"
	"github.com/orbitcore/server/internal/net/packet"
)

// Ambient entities are seeded by a PoolManager, which is their only owner.
// Grids reference them but never delete them.
type Ambient interface {
	Entity
	sector() GridIndex
	seeded() bool
}

type ambientBase struct {
	home     GridIndex // sector the entity was seeded in
	isSeeded bool      // false for kill drops
}

func (a *ambientBase) sector() GridIndex { return a.home }
func (a *ambientBase) seeded() bool      { return a.isSeeded }

// Mob is an AI ship owned by the mob pool.
type Mob struct {
	Object
	ambientBase

	template *MobTemplate
	mu       sync.Mutex
	stats    MobStats
	hp       int32
	shield   int32
	spawn    Vector2
	roam     IntervalTimer
}

func newMob(id ident.ID, t *MobTemplate, stats MobStats, pos Vector2, home GridIndex, seeded bool, clock func() time.Time, roamEvery time.Duration) *Mob {
	mob := &Mob{
		template: t,
		stats:    stats,
		hp:       stats.HP,
		shield:   stats.Shield,
		spawn:    pos,
		roam:     NewIntervalTimer(roamEvery),
	}
	mob.home = home
	mob.isSeeded = seeded
	mob.init(mob, id, t.Name, NewMotion(pos, stats.Speed, clock))
	return mob
}

func (mob *Mob) Template() *MobTemplate { return mob.template }
func (mob *Mob) Stats() MobStats        { return mob.stats }
func (mob *Mob) SpawnPoint() Vector2    { return mob.spawn }

func (mob *Mob) HP() int32 {
	mob.mu.Lock()
	defer mob.mu.Unlock()
	return mob.hp
}

// Cargo is what the mob drops: its template loot.
func (mob *Mob) Cargo() Resources { return mob.template.Loot.Clone() }

// Damage applies raw damage, shield first. Returns true when the hit killed
// the mob; the kill schedules it for the pool's next sweep.
func (mob *Mob) Damage(amount int32) bool {
	mob.mu.Lock()
	defer mob.mu.Unlock()
	if mob.hp <= 0 {
		return false
	}
	absorbed := min(amount, mob.shield)
	mob.shield -= absorbed
	mob.hp -= amount - absorbed
	if mob.hp > 0 {
		return false
	}
	mob.hp = 0
	mob.Kill()
	return true
}

// Kill marks the mob dead and hands it to the sweep.
func (mob *Mob) Kill() {
	mob.SetDead(true)
	mob.ScheduleForDelete()
}

// Update roams around the spawn point while idle.
func (mob *Mob) Update(diff time.Duration) {
	m := mob.Map()
	if m == nil || mob.Dead() || mob.motion.Moving() {
		return
	}
	mob.roam.Update(diff)
	if !mob.roam.Passed() {
		return
	}
	mob.roam.Reset()
	r := m.env.Settings.MobRoamRadius
	if r <= 0 {
		return
	}
	dest := mob.motion.PositionInCircleRadius(r)
	if dest.Distance(mob.spawn) > 2*r {
		dest = mob.spawn
	}
	mob.Move(dest.Clamp(Vector2{}, m.Size()))
}

// Ore is a collectable resource owned by the ore pool.
type Ore struct {
	Object
	ambientBase

	template *OreTemplate
}

func newOre(id ident.ID, t *OreTemplate, pos Vector2, home GridIndex, clock func() time.Time) *Ore {
	o := &Ore{template: t}
	o.home = home
	o.isSeeded = true
	o.init(o, id, t.Name, NewMotion(pos, 0, clock))
	return o
}

func (o *Ore) Template() *OreTemplate { return o.template }

// Collect hands the yield to the player and removes the ore on the next sweep.
// Returns false if somebody else got there first.
func (o *Ore) Collect(p *Player) bool {
	if !o.scheduledForDelete.CompareAndSwap(false, true) {
		return false
	}
	p.AddCargo(o.template.Yield.Clone())
	return true
}

// BoxType distinguishes seeded bonus boxes from cargo dropped by a kill.
type BoxType uint8

const (
	BoxBonus BoxType = iota
	BoxCargo
	BoxPirate
)

func (t BoxType) String() string {
	switch t {
	case BoxBonus:
		return "Bonus Box"
	case BoxCargo:
		return "Cargo Box"
	case BoxPirate:
		return "Pirate Booty"
	default:
		return "Box"
	}
}

// BonusBox is a lootable container owned by the bonus box pool.
type BonusBox struct {
	Object
	ambientBase

	boxType   BoxType
	cargo     Resources
	owner     ident.ID
	createdAt time.Time
	grace     time.Duration
	clock     func() time.Time
}

func newBonusBox(id ident.ID, boxType BoxType, cargo Resources, owner ident.ID, pos Vector2, home GridIndex, seeded bool, grace time.Duration, clock func() time.Time) *BonusBox {
	b := &BonusBox{
		boxType:   boxType,
		cargo:     cargo,
		owner:     owner,
		createdAt: clock(),
		grace:     grace,
		clock:     clock,
	}
	b.home = home
	b.isSeeded = seeded
	b.init(b, id, boxType.String(), NewMotion(pos, 0, clock))
	return b
}

func (b *BonusBox) Type() BoxType       { return b.boxType }
func (b *BonusBox) Owner() ident.ID     { return b.owner }
func (b *BonusBox) Contents() Resources { return b.cargo.Clone() }

// CanLoot implements the friendly cargo grace: only the owner may open the
// box until the grace has run out.
func (b *BonusBox) CanLoot(p *Player) bool {
	if b.owner.IsZero() || b.owner == p.ID() {
		return true
	}
	return b.clock().Sub(b.createdAt) >= b.grace
}

// Loot moves the contents into the player's hold. The box disappears on the
// pool's next sweep.
func (b *BonusBox) Loot(p *Player) bool {
	if !b.CanLoot(p) {
		return false
	}
	if !b.scheduledForDelete.CompareAndSwap(false, true) {
		return false
	}
	p.AddCargo(b.cargo.Clone())
	return true
}

func (b *BonusBox) spawnInfo() packet.ObjectInfo {
	info := b.Object.spawnInfo()
	info.Owner = uint64(b.owner)
	return info
}

// Portal is a constant object that starts a jump when used.
type Portal struct {
	Object
	target JumpDestination
}

func NewPortal(id ident.ID, name string, pos Vector2, target JumpDestination) *Portal {
	p := &Portal{target: target}
	p.init(p, id, name, NewMotion(pos, 0, nil))
	return p
}

func (p *Portal) Target() JumpDestination { return p.target }

// Station is a constant object: a faction base.
type Station struct {
	Object
	faction uint8
}

func NewStation(id ident.ID, name string, pos Vector2, faction uint8) *Station {
	s := &Station{faction: faction}
	s.init(s, id, name, NewMotion(pos, 0, nil))
	return s
}

func (s *Station) Faction() uint8 { return s.faction }

func constantInfo(e Entity) packet.ConstantInfo {
	o := e.Base()
	pos := o.Position()
	info := packet.ConstantInfo{
		ID:   uint64(o.ID()),
		Kind: uint8(o.Kind()),
		Name: o.Name(),
		X:    pos.X,
		Y:    pos.Y,
	}
	if p, ok := e.(*Portal); ok {
		info.TargetMap = p.target.MapID
	}
	return info
}

// spawnInfoOf picks the richest spawn payload an entity offers.
func spawnInfoOf(e Entity) packet.ObjectInfo {
	if b, ok := e.(*BonusBox); ok {
		return b.spawnInfo()
	}
	return e.Base().spawnInfo()
}
