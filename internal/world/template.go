package world

import (
	"sort"
	"time"
)

// MobTemplate is the static definition of an AI ship.
type MobTemplate struct {
	ID           uint32
	Name         string
	HP           int32
	Shield       int32
	Damage       int32
	Speed        float64
	Aggressive   bool
	Loot         Resources
	RespawnDelay time.Duration
}

// MobStats are the numbers a spawned mob actually carries.
type MobStats struct {
	HP     int32
	Shield int32
	Damage int32
	Speed  float64
}

// OreTemplate is a collectable resource kind.
type OreTemplate struct {
	ID           uint32
	Name         string
	Region       RegionClass
	SpawnChance  float64 // per sector
	Yield        Resources
	RespawnDelay time.Duration
}

// MapMob associates a mob template with a map and its per-sector chance.
type MapMob struct {
	MobID       uint32
	SpawnChance float64
}

// RegionClass gates which ores a map may seed.
type RegionClass string

const (
	RegionAny     RegionClass = "any"
	RegionStarter RegionClass = "starter"
	RegionMid     RegionClass = "mid"
	RegionLower   RegionClass = "lower"
)

// Allows reports whether an ore restricted to c may appear on a map of class m.
func (c RegionClass) Allows(m RegionClass) bool {
	return c == "" || c == RegionAny || c == m
}

// Resources is cargo carried by ships and loot containers.
type Resources struct {
	Credits    int64
	Uridium    int64
	Experience int64
	Honor      int64
	Ore        map[uint32]int64 // ore template id -> amount
}

// Clone deep-copies the ore map so snapshots do not alias the source.
func (r Resources) Clone() Resources {
	out := r
	if r.Ore != nil {
		out.Ore = make(map[uint32]int64, len(r.Ore))
		for k, v := range r.Ore {
			out.Ore[k] = v
		}
	}
	return out
}

func (r Resources) IsZero() bool {
	if r.Credits != 0 || r.Uridium != 0 || r.Experience != 0 || r.Honor != 0 {
		return false
	}
	for _, v := range r.Ore {
		if v != 0 {
			return false
		}
	}
	return true
}

// Catalog holds every template loaded at boot. Read-only afterwards.
type Catalog struct {
	mobs map[uint32]*MobTemplate
	ores []*OreTemplate
}

func NewCatalog(mobs []MobTemplate, ores []OreTemplate) *Catalog {
	c := &Catalog{mobs: make(map[uint32]*MobTemplate, len(mobs))}
	for i := range mobs {
		c.mobs[mobs[i].ID] = &mobs[i]
	}
	for i := range ores {
		c.ores = append(c.ores, &ores[i])
	}
	sort.Slice(c.ores, func(i, j int) bool { return c.ores[i].ID < c.ores[j].ID })
	return c
}

// Mob returns a template by id, or nil if not found.
func (c *Catalog) Mob(id uint32) *MobTemplate {
	return c.mobs[id]
}

// Ore returns an ore template by id, or nil if not found.
func (c *Catalog) Ore(id uint32) *OreTemplate {
	for _, o := range c.ores {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// Ores returns ore templates ordered by id.
func (c *Catalog) Ores() []*OreTemplate {
	return c.ores
}

func (c *Catalog) MobCount() int { return len(c.mobs) }
func (c *Catalog) OreCount() int { return len(c.ores) }

// DefaultScript is used when no Lua engine is configured.
type DefaultScript struct{}

func (DefaultScript) MobStats(t *MobTemplate, _ int32) MobStats {
	return MobStats{HP: t.HP, Shield: t.Shield, Damage: t.Damage, Speed: t.Speed}
}

// OreRegionClass follows the map numbering of the three faction lanes:
// the first two maps of each lane are starter space, the next two mid,
// everything past id 12 is lower space.
func (DefaultScript) OreRegionClass(mapID int32) RegionClass {
	if mapID < 1 || mapID > 12 {
		return RegionLower
	}
	if (mapID-1)%4 < 2 {
		return RegionStarter
	}
	return RegionMid
}
