package data

import (
	"fmt"
	"os"
	"sort"

	"github.com/orbitcore/server/internal/world"
	"gopkg.in/yaml.v3"
)

// MapInfo holds metadata for a single map, loaded from map_list.yaml.
type MapInfo struct {
	ID             int32   `yaml:"id"`
	Name           string  `yaml:"name"`
	Footprint      string  `yaml:"footprint"`
	Faction        uint8   `yaml:"faction"`
	BonusBoxChance float64 `yaml:"bonus_box_chance"`
	Starter        bool    `yaml:"starter"`
}

// Spec converts the entry into the simulation's map description.
func (m *MapInfo) Spec() (world.MapSpec, error) {
	fp, err := world.ParseFootprint(m.Footprint)
	if err != nil {
		return world.MapSpec{}, fmt.Errorf("map %d: %w", m.ID, err)
	}
	return world.MapSpec{
		ID:             m.ID,
		Name:           m.Name,
		Footprint:      fp,
		BonusBoxChance: m.BonusBoxChance,
	}, nil
}

// MapTable is every playable map, keyed by id.
type MapTable struct {
	maps map[int32]*MapInfo
}

// LoadMapTable loads map_list.yaml.
func LoadMapTable(path string) (*MapTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map list: %w", err)
	}
	var entries []MapInfo
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse map list: %w", err)
	}
	t := &MapTable{maps: make(map[int32]*MapInfo, len(entries))}
	for i := range entries {
		e := &entries[i]
		if e.ID <= 0 {
			return nil, fmt.Errorf("map list entry %d: invalid id %d", i, e.ID)
		}
		if _, dup := t.maps[e.ID]; dup {
			return nil, fmt.Errorf("map list: duplicate id %d", e.ID)
		}
		if _, err := world.ParseFootprint(e.Footprint); err != nil {
			return nil, fmt.Errorf("map %d: %w", e.ID, err)
		}
		if e.BonusBoxChance < 0 || e.BonusBoxChance > 1 {
			return nil, fmt.Errorf("map %d: bonus_box_chance %v out of [0,1]", e.ID, e.BonusBoxChance)
		}
		t.maps[e.ID] = e
	}
	return t, nil
}

// Get returns map info by id, or nil if not found.
func (t *MapTable) Get(id int32) *MapInfo {
	return t.maps[id]
}

// All returns every map ordered by id.
func (t *MapTable) All() []*MapInfo {
	out := make([]*MapInfo, 0, len(t.maps))
	for _, m := range t.maps {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StarterMap returns the starter map of a faction, or nil.
func (t *MapTable) StarterMap(faction uint8) *MapInfo {
	for _, m := range t.All() {
		if m.Starter && m.Faction == faction {
			return m
		}
	}
	return nil
}

func (t *MapTable) Count() int {
	return len(t.maps)
}
