package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/orbitcore/server/internal/core/ident"
	"github.com/orbitcore/server/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "list.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestShippedTablesLoad(t *testing.T) {
	maps, err := LoadMapTable("../../data/yaml/map_list.yaml")
	require.NoError(t, err)
	assert.Equal(t, 16, maps.Count())

	consts, err := LoadConstantTable("../../data/yaml/constant_list.yaml")
	require.NoError(t, err)
	require.NoError(t, consts.Validate(maps))
	assert.Positive(t, consts.Count())

	for f := uint8(1); f <= 3; f++ {
		starter := maps.StarterMap(f)
		require.NotNil(t, starter, "faction %d", f)
		assert.NotEmpty(t, consts.Stations(starter.ID))
	}

	spec, err := maps.Get(16).Spec()
	require.NoError(t, err)
	assert.Equal(t, world.FootprintBig, spec.Footprint)
}

func TestLoadMapTableRejects(t *testing.T) {
	cases := map[string]string{
		"duplicate": "- {id: 1, name: a}\n- {id: 1, name: b}\n",
		"footprint": "- {id: 1, name: a, footprint: huge}\n",
		"chance":    "- {id: 1, name: a, bonus_box_chance: 2}\n",
		"id":        "- {id: 0, name: a}\n",
		"syntax":    "- {id: 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMapTable(writeFile(t, body))
			assert.Error(t, err)
		})
	}

	_, err := LoadMapTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read map list")
}

func TestMapTableOrder(t *testing.T) {
	tbl, err := LoadMapTable(writeFile(t, "- {id: 3, name: c}\n- {id: 1, name: a, starter: true, faction: 2}\n- {id: 2, name: b}\n"))
	require.NoError(t, err)
	var ids []int32
	for _, m := range tbl.All() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int32{1, 2, 3}, ids)
	assert.Nil(t, tbl.Get(9))
	assert.Equal(t, int32(1), tbl.StarterMap(2).ID)
	assert.Nil(t, tbl.StarterMap(1))
}

func TestConstantTableValidate(t *testing.T) {
	maps, err := LoadMapTable(writeFile(t, "- {id: 1, name: a}\n- {id: 2, name: b}\n"))
	require.NoError(t, err)

	ok, err := LoadConstantTable(writeFile(t, `
portals:
  - {map_id: 1, x: 100, y: 100, target_map_id: 2, target_x: 500, target_y: 500}
stations:
  - {map_id: 2, name: base, x: 10, y: 10, faction: 1}
`))
	require.NoError(t, err)
	assert.NoError(t, ok.Validate(maps))

	bad, err := LoadConstantTable(writeFile(t, `
portals:
  - {map_id: 1, x: 100, y: 100, target_map_id: 7}
`))
	require.NoError(t, err)
	assert.ErrorContains(t, bad.Validate(maps), "unknown target map 7")
}

func TestConstantTablePlace(t *testing.T) {
	tbl, err := LoadConstantTable(writeFile(t, `
portals:
  - {map_id: 1, x: 100, y: 200, target_map_id: 2, target_x: 500, target_y: 600}
  - {map_id: 2, x: 1, y: 1, target_map_id: 1}
stations:
  - {map_id: 1, name: base, x: 10, y: 10, faction: 3}
`))
	require.NoError(t, err)

	m := world.NewMap(&world.Env{}, world.MapSpec{ID: 1, Name: "1-1"})
	n := tbl.Place(m, ident.NewGenerator(0))
	assert.Equal(t, 2, n)
	require.Len(t, m.Constants(), 2)

	portal, ok := m.Constants()[0].(*world.Portal)
	require.True(t, ok)
	assert.Equal(t, world.JumpDestination{MapID: 2, Position: world.Vector2{X: 500, Y: 600}}, portal.Target())
	assert.Equal(t, world.Vector2{X: 100, Y: 200}, portal.Position())
	assert.Same(t, m, portal.Map())

	station, ok := m.Constants()[1].(*world.Station)
	require.True(t, ok)
	assert.Equal(t, uint8(3), station.Faction())
	assert.Same(t, station, m.FindObject(station.ID()))
}

func TestShippedTemplateSet(t *testing.T) {
	set, err := LoadTemplateSet("../../data/yaml/template_list.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, set.Mobs)
	assert.NotEmpty(t, set.Ores)
	assert.Positive(t, set.MapMobCount())

	maps, err := LoadMapTable("../../data/yaml/map_list.yaml")
	require.NoError(t, err)
	for mapID := range set.MapMobs {
		assert.NotNil(t, maps.Get(mapID), "map %d", mapID)
	}
}

func TestLoadTemplateSet(t *testing.T) {
	set, err := LoadTemplateSet(writeFile(t, `
mobs:
  - {id: 1, name: Streuner, hp: 800, shield: 400, credits: 400, respawn: 30s}
ores:
  - {id: 2, name: Endurium, region: starter, spawn_chance: 0.5, yield: 3, respawn: 1m}
  - {id: 1, name: Prometium, spawn_chance: 1, yield: 1}
map_mobs:
  - {map_id: 1, mob_id: 1, spawn_chance: 0.25}
`))
	require.NoError(t, err)
	require.Len(t, set.Mobs, 1)
	assert.Equal(t, int64(400), set.Mobs[0].Loot.Credits)
	assert.Equal(t, 30*time.Second, set.Mobs[0].RespawnDelay)
	require.Len(t, set.Ores, 2)
	assert.Equal(t, world.RegionStarter, set.Ores[0].Region)
	assert.Equal(t, int64(3), set.Ores[0].Yield.Ore[2])
	assert.Equal(t, world.RegionAny, set.Ores[1].Region)
	assert.Equal(t, []world.MapMob{{MobID: 1, SpawnChance: 0.25}}, set.MapMobs[1])
}

func TestLoadTemplateSetRejects(t *testing.T) {
	cases := map[string]string{
		"duplicate mob": "mobs:\n  - {id: 1, name: a}\n  - {id: 1, name: b}\n",
		"region":        "ores:\n  - {id: 1, name: a, region: void}\n",
		"unknown mob":   "map_mobs:\n  - {map_id: 1, mob_id: 9, spawn_chance: 1}\n",
		"chance":        "mobs:\n  - {id: 1, name: a}\nmap_mobs:\n  - {map_id: 1, mob_id: 1, spawn_chance: 3}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadTemplateSet(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}
