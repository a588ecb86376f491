package world

import (
	"math/rand"
	"testing"
	"time"

	"github.com/orbitcore/server/internal/core/ident"
	"github.com/orbitcore/server/internal/net/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapCellSizes(t *testing.T) {
	env, _ := newTestEnv(t)
	normal := NewMap(env, MapSpec{ID: 1, Footprint: FootprintNormal})
	assert.Equal(t, Vector2{X: 2625, Y: 1762}, normal.CellSize())

	big := NewMap(env, MapSpec{ID: 2, Footprint: FootprintBig})
	assert.Equal(t, Vector2{X: 5250, Y: 3525}, big.CellSize())
	assert.Equal(t, 8, big.Cells())
}

func TestMapGridIndexFor(t *testing.T) {
	env, _ := newTestEnv(t)
	m := newTestMap(t, env, 1)
	tests := []struct {
		pos  Vector2
		want GridIndex
	}{
		{Vector2{0, 0}, GridIndex{0, 0}},
		{Vector2{2624.9, 1761.9}, GridIndex{0, 0}},
		{Vector2{2625, 1762}, GridIndex{1, 1}},
		{Vector2{2700, 0}, GridIndex{1, 0}},
		{Vector2{20999, 14000}, GridIndex{7, 7}},
		{Vector2{-1, 0}, GridIndex{-1, 0}},
		{Vector2{22000, 500}, GridIndex{8, 0}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.GridIndexFor(tt.pos), "pos %v", tt.pos)
	}
}

func TestMapGridOutOfRangePanics(t *testing.T) {
	env, _ := newTestEnv(t)
	m := newTestMap(t, env, 1)
	assert.Panics(t, func() { m.Grid(GridIndex{X: 8, Y: 0}) })
	assert.Panics(t, func() { m.Grid(OverflowIndex) })
	assert.Same(t, m.Overflow(), m.GridAt(GridIndex{X: 8, Y: 0}))
}

func TestMoveRequiresMap(t *testing.T) {
	env, clk := newTestEnv(t)
	p, _ := newTestPlayer(1, Vector2{}, clk)
	assert.Panics(t, func() { p.Move(Vector2{X: 10}) })

	m := newTestMap(t, env, 1)
	m.Add(p)
	m.Remove(p)
	assert.Panics(t, func() { p.Move(Vector2{X: 10}) }, "removed objects are not placed")
}

func TestMapAddPlacesInExactlyOneGrid(t *testing.T) {
	env, clk := newTestEnv(t)
	m := newTestMap(t, env, 1)
	p, _ := newTestPlayer(1, Vector2{X: 6000, Y: 4000}, clk)
	m.Add(p)

	grids := gridsContaining(m, p.ID())
	require.Len(t, grids, 1)
	assert.Equal(t, GridIndex{X: 2, Y: 2}, grids[0].Index())
	assert.Equal(t, GridIndex{X: 2, Y: 2}, p.Cell())
	assert.True(t, p.Placed())
	assert.Same(t, m, p.Map())
	assert.Same(t, p, m.FindPlayer(p.ID()))
	assert.Equal(t, GridActive, grids[0].State())

	assert.Panics(t, func() { m.Add(p) }, "double placement")
}

func TestMapAddSendsConstants(t *testing.T) {
	env, clk := newTestEnv(t)
	m := newTestMap(t, env, 1)
	m.AddConstant(NewPortal(env.IDs.Next(ident.KindPortal, 0), "to 1-2", Vector2{X: 18500, Y: 11500}, JumpDestination{MapID: 2}))
	m.AddConstant(NewStation(env.IDs.Next(ident.KindStation, 0), "MMO HQ", Vector2{X: 1000, Y: 1000}, 1))

	p, rec := newTestPlayer(1, Vector2{X: 500, Y: 500}, clk)
	m.Add(p)
	assert.Equal(t, 2, rec.count(packet.S_OPCODE_CONSTANT))

	mob := newTestMob(env, Vector2{X: 600, Y: 600})
	assert.NotPanics(t, func() { m.Add(mob) })
	assert.Equal(t, 2, len(m.Constants()))
	assert.Empty(t, gridsContaining(m, m.Constants()[0].Base().ID()), "constants live outside grids")
}

func TestMapMoveAcrossCell(t *testing.T) {
	env, clk := newTestEnv(t)
	m := newTestMap(t, env, 1)
	mob := newTestMob(env, Vector2{X: 0, Y: 0})
	m.Add(mob)
	require.Equal(t, GridIndex{X: 0, Y: 0}, mob.Cell())

	mob.Motion().Teleport(Vector2{X: 2700, Y: 0})
	m.Move(mob)

	assert.Equal(t, GridIndex{X: 1, Y: 0}, mob.Cell())
	grids := gridsContaining(m, mob.ID())
	require.Len(t, grids, 1)
	assert.Same(t, m.Grid(GridIndex{X: 1, Y: 0}), grids[0])

	// same cell: membership unchanged
	mob.Motion().Teleport(Vector2{X: 2800, Y: 100})
	m.Move(mob)
	assert.Same(t, m.Grid(GridIndex{X: 1, Y: 0}), gridsContaining(m, mob.ID())[0])
	_ = clk
}

func TestMapFlightCrossesCellDuringUpdate(t *testing.T) {
	env, clk := newTestEnv(t)
	m := newTestMap(t, env, 1)
	p, _ := newTestPlayer(1, Vector2{X: 2000, Y: 100}, clk)
	m.Add(p)

	eta := p.Move(Vector2{X: 3500, Y: 100})
	require.Equal(t, 5*time.Second, eta)
	assert.Equal(t, GridIndex{X: 0, Y: 0}, p.Cell(), "cell follows position, not destination")

	clk.Advance(3 * time.Second)
	m.Update(100 * time.Millisecond)
	assert.Equal(t, GridIndex{X: 1, Y: 0}, p.Cell())
	require.Len(t, gridsContaining(m, p.ID()), 1)
	assert.True(t, m.Grid(GridIndex{X: 1, Y: 0}).Contains(p.ID()))
}

func TestMapOverflowRegion(t *testing.T) {
	env, clk := newTestEnv(t)
	m := newTestMap(t, env, 1)
	p, _ := newTestPlayer(1, Vector2{X: 1000, Y: 1000}, clk)
	m.Add(p)
	assert.False(t, p.InRadiationZone())

	p.Motion().Teleport(Vector2{X: -500, Y: 1000})
	m.Move(p)
	assert.True(t, p.InRadiationZone())
	assert.Equal(t, GridIndex{X: -1, Y: 0}, p.Cell())
	grids := gridsContaining(m, p.ID())
	require.Len(t, grids, 1)
	assert.True(t, grids[0].Overflow())

	p.Motion().Teleport(Vector2{X: 1000, Y: 1000})
	m.Move(p)
	assert.False(t, p.InRadiationZone())
	assert.False(t, m.Overflow().Contains(p.ID()))
}

func TestMapMembershipInvariantUnderRandomMoves(t *testing.T) {
	env, clk := newTestEnv(t)
	m := newTestMap(t, env, 1)
	rng := rand.New(rand.NewSource(1))
	var objs []Entity
	for i := 0; i < 20; i++ {
		mob := newTestMob(env, Vector2{X: rng.Float64() * 21000, Y: rng.Float64() * 14100})
		m.Add(mob)
		objs = append(objs, mob)
	}
	for step := 0; step < 200; step++ {
		e := objs[rng.Intn(len(objs))]
		e.Base().Motion().Teleport(Vector2{X: rng.Float64()*25000 - 2000, Y: rng.Float64()*18000 - 2000})
		m.Move(e)
	}
	for _, e := range objs {
		o := e.Base()
		grids := gridsContaining(m, o.ID())
		require.Len(t, grids, 1, "object %s", o)
		assert.Same(t, m.GridAt(o.Cell()), grids[0])
	}
	_ = clk
}

func TestMapMoveBroadcastsForAnyKind(t *testing.T) {
	env, clk := newTestEnv(t)
	m := newTestMap(t, env, 1)
	watcher, rec := newTestPlayer(1, Vector2{X: 1000, Y: 1000}, clk)
	m.Add(watcher)
	mob := newTestMob(env, Vector2{X: 1500, Y: 1000})
	m.Add(mob)
	ore := newOre(env.IDs.Next(ident.KindOre, 1), &OreTemplate{ID: 1, Name: "Prometium"}, Vector2{X: 1200, Y: 1200}, GridIndex{}, env.Clock)
	m.Add(ore)

	m.Update(100 * time.Millisecond)
	require.True(t, watcher.Surroundings().Tracks(mob.ID()))
	rec.reset()

	mob.Move(Vector2{X: 3000, Y: 1000})
	assert.Equal(t, 1, rec.count(packet.S_OPCODE_MOVE))
	m.Move(ore)
	assert.Equal(t, 2, rec.count(packet.S_OPCODE_MOVE))
}

func TestMapUpdateSkipsIdleGridsButNotOverflow(t *testing.T) {
	env, _ := newTestEnv(t)
	m := newTestMap(t, env, 1)
	inIdle := newDummy(env, Vector2{X: 15000, Y: 10000})
	inOverflow := newDummy(env, Vector2{X: -300, Y: -300})
	m.Add(inIdle)
	m.Add(inOverflow)

	for i := 0; i < 3; i++ {
		m.Update(100 * time.Millisecond)
	}
	assert.Equal(t, 0, inIdle.updates)
	assert.Equal(t, 3, inOverflow.updates)
}

func TestMapLivenessDemotesEmptyGrids(t *testing.T) {
	env, clk := newTestEnv(t)
	env.Settings.LivenessCheckInterval = time.Second
	m := newTestMap(t, env, 1)
	p, _ := newTestPlayer(1, Vector2{X: 100, Y: 100}, clk)
	m.Add(p)
	assert.Equal(t, 1, m.ActiveGrids())

	m.Remove(p)
	m.Update(500 * time.Millisecond)
	assert.Equal(t, 1, m.ActiveGrids(), "not demoted before the liveness interval")
	m.Update(500 * time.Millisecond)
	assert.Equal(t, 0, m.ActiveGrids())
}

func TestMapFlightInIdleGridStillChangesCell(t *testing.T) {
	env, clk := newTestEnv(t)
	env.Settings.LivenessCheckInterval = time.Second
	m := newTestMap(t, env, 1)
	p, _ := newTestPlayer(1, Vector2{X: 100, Y: 100}, clk)
	m.Add(p)
	mob := newTestMob(env, Vector2{X: 200, Y: 100})
	m.Add(mob)
	m.Remove(p)

	mob.Move(Vector2{X: 3000, Y: 100})
	clk.Advance(time.Second)
	m.Update(time.Second)
	require.Equal(t, GridIdle, m.Grid(GridIndex{}).State())
	require.True(t, mob.Motion().Moving())
	assert.Equal(t, GridIndex{}, mob.Cell())

	clk.Advance(time.Hour)
	m.Update(time.Millisecond)
	assert.Equal(t, GridIndex{X: 1, Y: 0}, mob.Cell())
	grids := gridsContaining(m, mob.ID())
	require.Len(t, grids, 1)
	assert.Same(t, m.Grid(GridIndex{X: 1, Y: 0}), grids[0])
	assert.Empty(t, m.drifting, "landed objects stop being tracked")
}

func TestMapMoveDuringWalkIsDeferred(t *testing.T) {
	env, clk := newTestEnv(t)
	m := newTestMap(t, env, 1)
	p, _ := newTestPlayer(1, Vector2{X: 100, Y: 100}, clk)
	m.Add(p)
	d := newDummy(env, Vector2{X: 200, Y: 100})
	m.Add(d)

	var during GridIndex
	d.onUpdate = func() {
		if d.updates > 1 {
			return
		}
		d.Motion().Teleport(Vector2{X: 2700, Y: 100})
		m.Move(d)
		during = d.Cell()
	}
	m.Update(time.Millisecond)

	assert.Equal(t, GridIndex{}, during, "cell change waits for the walk to end")
	assert.Equal(t, GridIndex{X: 1, Y: 0}, d.Cell())
	require.Len(t, gridsContaining(m, d.ID()), 1)
	assert.Empty(t, m.deferred)
}

func TestMapPostRunsOnUpdate(t *testing.T) {
	env, clk := newTestEnv(t)
	m := newTestMap(t, env, 1)
	p, _ := newTestPlayer(1, Vector2{X: 100, Y: 100}, clk)
	m.Post(func() { m.Add(p) })
	assert.Nil(t, m.FindPlayer(p.ID()))
	m.Update(time.Millisecond)
	assert.Same(t, p, m.FindPlayer(p.ID()))
}

func TestMapDisconnectClearsVisibility(t *testing.T) {
	env, clk := newTestEnv(t)
	m := newTestMap(t, env, 1)
	p, rec := newTestPlayer(1, Vector2{X: 1000, Y: 1000}, clk)
	other, _ := newTestPlayer(2, Vector2{X: 1400, Y: 1000}, clk)
	m.Add(p)
	m.Add(other)
	for i := 0; i < 3; i++ {
		m.Add(newTestMob(env, Vector2{X: 1100 + float64(i)*100, Y: 1200}))
	}

	m.Update(100 * time.Millisecond)
	require.Equal(t, 4, p.Surroundings().Len())
	rec.reset()

	assert.Equal(t, 4, m.Disconnect(p))
	assert.Equal(t, 0, p.Surroundings().Len())
	assert.Equal(t, 4, rec.count(packet.S_OPCODE_REMOVE_OBJECT))
	assert.Nil(t, m.FindPlayer(p.ID()))
	assert.Nil(t, p.Map())

	// the other player drops the disconnected one on its next pass, no grace
	require.True(t, other.Surroundings().Tracks(p.ID()))
	m.Update(time.Millisecond)
	assert.False(t, other.Surroundings().Tracks(p.ID()))
}

func TestMapUsePortal(t *testing.T) {
	env, clk := newTestEnv(t)
	src := newTestMap(t, env, 1)
	dst := newTestMap(t, env, 2)
	env.Maps = resolver{1: src, 2: dst}
	portal := NewPortal(env.IDs.Next(ident.KindPortal, 0), "to 1-2", Vector2{X: 2000, Y: 2000}, JumpDestination{MapID: 2, Position: Vector2{X: 500, Y: 500}})
	src.AddConstant(portal)

	far, _ := newTestPlayer(1, Vector2{X: 9000, Y: 9000}, clk)
	src.Add(far)
	_, err := src.UsePortal(far, portal.ID())
	assert.ErrorIs(t, err, ErrOutOfRange)

	near, rec := newTestPlayer(2, Vector2{X: 2100, Y: 2000}, clk)
	src.Add(near)
	ok, err := src.UsePortal(near, portal.ID())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, rec.count(packet.S_OPCODE_JUMP_START))

	_, err = src.UsePortal(near, ident.New(ident.KindPortal, 0, 999999))
	assert.ErrorIs(t, err, ErrNotOnMap)
}
