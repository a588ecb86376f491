package data

import (
	"fmt"
	"os"
	"time"

	"github.com/orbitcore/server/internal/world"
	"gopkg.in/yaml.v3"
)

type mobEntry struct {
	ID         uint32        `yaml:"id"`
	Name       string        `yaml:"name"`
	HP         int32         `yaml:"hp"`
	Shield     int32         `yaml:"shield"`
	Damage     int32         `yaml:"damage"`
	Speed      float64       `yaml:"speed"`
	Aggressive bool          `yaml:"aggressive"`
	Credits    int64         `yaml:"credits"`
	Uridium    int64         `yaml:"uridium"`
	Experience int64         `yaml:"experience"`
	Honor      int64         `yaml:"honor"`
	Respawn    time.Duration `yaml:"respawn"`
}

type oreEntry struct {
	ID          uint32        `yaml:"id"`
	Name        string        `yaml:"name"`
	Region      string        `yaml:"region"`
	SpawnChance float64       `yaml:"spawn_chance"`
	Yield       int64         `yaml:"yield"`
	Respawn     time.Duration `yaml:"respawn"`
}

type mapMobEntry struct {
	MapID       int32   `yaml:"map_id"`
	MobID       uint32  `yaml:"mob_id"`
	SpawnChance float64 `yaml:"spawn_chance"`
}

type templateFile struct {
	Mobs    []mobEntry    `yaml:"mobs"`
	Ores    []oreEntry    `yaml:"ores"`
	MapMobs []mapMobEntry `yaml:"map_mobs"`
}

// TemplateSet is the content of template_list.yaml, ready to be written to
// the database.
type TemplateSet struct {
	Mobs    []world.MobTemplate
	Ores    []world.OreTemplate
	MapMobs map[int32][]world.MapMob
}

// LoadTemplateSet loads template_list.yaml.
func LoadTemplateSet(path string) (*TemplateSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template list: %w", err)
	}
	var f templateFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse template list: %w", err)
	}

	set := &TemplateSet{MapMobs: make(map[int32][]world.MapMob)}
	mobIDs := make(map[uint32]bool, len(f.Mobs))
	for _, m := range f.Mobs {
		if mobIDs[m.ID] {
			return nil, fmt.Errorf("template list: duplicate mob %d", m.ID)
		}
		mobIDs[m.ID] = true
		set.Mobs = append(set.Mobs, world.MobTemplate{
			ID:         m.ID,
			Name:       m.Name,
			HP:         m.HP,
			Shield:     m.Shield,
			Damage:     m.Damage,
			Speed:      m.Speed,
			Aggressive: m.Aggressive,
			Loot: world.Resources{
				Credits:    m.Credits,
				Uridium:    m.Uridium,
				Experience: m.Experience,
				Honor:      m.Honor,
			},
			RespawnDelay: m.Respawn,
		})
	}
	for _, o := range f.Ores {
		region := world.RegionClass(o.Region)
		switch region {
		case "":
			region = world.RegionAny
		case world.RegionAny, world.RegionStarter, world.RegionMid, world.RegionLower:
		default:
			return nil, fmt.Errorf("ore %d: unknown region %q", o.ID, o.Region)
		}
		set.Ores = append(set.Ores, world.OreTemplate{
			ID:           o.ID,
			Name:         o.Name,
			Region:       region,
			SpawnChance:  o.SpawnChance,
			Yield:        world.Resources{Ore: map[uint32]int64{o.ID: o.Yield}},
			RespawnDelay: o.Respawn,
		})
	}
	for _, mm := range f.MapMobs {
		if !mobIDs[mm.MobID] {
			return nil, fmt.Errorf("map %d: unknown mob %d", mm.MapID, mm.MobID)
		}
		if mm.SpawnChance < 0 || mm.SpawnChance > 1 {
			return nil, fmt.Errorf("map %d mob %d: spawn_chance %v out of [0,1]", mm.MapID, mm.MobID, mm.SpawnChance)
		}
		set.MapMobs[mm.MapID] = append(set.MapMobs[mm.MapID], world.MapMob{MobID: mm.MobID, SpawnChance: mm.SpawnChance})
	}
	return set, nil
}

// MapMobCount is the number of map/mob associations.
func (s *TemplateSet) MapMobCount() int {
	n := 0
	for _, list := range s.MapMobs {
		n += len(list)
	}
	return n
}
