package data

import (
	"fmt"
	"os"

	"github.com/orbitcore/server/internal/core/ident"
	"github.com/orbitcore/server/internal/world"
	"gopkg.in/yaml.v3"
)

// PortalEntry is a jump gate. Using it sends the ship to the target map.
type PortalEntry struct {
	MapID       int32   `yaml:"map_id"`
	X           float64 `yaml:"x"`
	Y           float64 `yaml:"y"`
	TargetMapID int32   `yaml:"target_map_id"`
	TargetX     float64 `yaml:"target_x"`
	TargetY     float64 `yaml:"target_y"`
	Note        string  `yaml:"note"`
}

// StationEntry is a faction base.
type StationEntry struct {
	MapID   int32   `yaml:"map_id"`
	Name    string  `yaml:"name"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Faction uint8   `yaml:"faction"`
}

type constantFile struct {
	Portals  []PortalEntry  `yaml:"portals"`
	Stations []StationEntry `yaml:"stations"`
}

// ConstantTable lists the always-visible objects of each map.
type ConstantTable struct {
	portals  map[int32][]*PortalEntry
	stations map[int32][]*StationEntry
	count    int
}

// LoadConstantTable loads constant_list.yaml.
func LoadConstantTable(path string) (*ConstantTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read constant list: %w", err)
	}
	var f constantFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse constant list: %w", err)
	}
	t := &ConstantTable{
		portals:  make(map[int32][]*PortalEntry),
		stations: make(map[int32][]*StationEntry),
	}
	for i := range f.Portals {
		p := &f.Portals[i]
		t.portals[p.MapID] = append(t.portals[p.MapID], p)
	}
	for i := range f.Stations {
		s := &f.Stations[i]
		t.stations[s.MapID] = append(t.stations[s.MapID], s)
	}
	t.count = len(f.Portals) + len(f.Stations)
	return t, nil
}

// Portals returns the portals on a map in file order.
func (t *ConstantTable) Portals(mapID int32) []*PortalEntry {
	return t.portals[mapID]
}

func (t *ConstantTable) Stations(mapID int32) []*StationEntry {
	return t.stations[mapID]
}

func (t *ConstantTable) Count() int {
	return t.count
}

// Validate checks every portal against the known maps.
func (t *ConstantTable) Validate(maps *MapTable) error {
	for mapID, list := range t.portals {
		if maps.Get(mapID) == nil {
			return fmt.Errorf("portal on unknown map %d", mapID)
		}
		for _, p := range list {
			if maps.Get(p.TargetMapID) == nil {
				return fmt.Errorf("portal on map %d at (%v,%v): unknown target map %d", mapID, p.X, p.Y, p.TargetMapID)
			}
		}
	}
	for mapID := range t.stations {
		if maps.Get(mapID) == nil {
			return fmt.Errorf("station on unknown map %d", mapID)
		}
	}
	return nil
}

// Place adds the portals and stations of m's id to m as constant objects.
// Returns how many were placed.
func (t *ConstantTable) Place(m *world.Map, ids *ident.Generator) int {
	n := 0
	for _, p := range t.portals[m.ID()] {
		target := world.JumpDestination{
			MapID:    p.TargetMapID,
			Position: world.Vector2{X: p.TargetX, Y: p.TargetY},
		}
		name := fmt.Sprintf("portal to %d", p.TargetMapID)
		m.AddConstant(world.NewPortal(ids.Next(ident.KindPortal, 0), name, world.Vector2{X: p.X, Y: p.Y}, target))
		n++
	}
	for _, s := range t.stations[m.ID()] {
		m.AddConstant(world.NewStation(ids.Next(ident.KindStation, 0), s.Name, world.Vector2{X: s.X, Y: s.Y}, s.Faction))
		n++
	}
	return n
}
