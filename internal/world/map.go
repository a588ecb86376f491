package world

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/orbitcore/server/internal/core/ident"
	"go.uber.org/zap"
)

var (
	ErrMapNotFound = errors.New("map not found")
	ErrNotOnMap    = errors.New("object is not on this map")
	ErrOutOfRange  = errors.New("target out of range")
)

// Footprint is the size class of a map.
type Footprint uint8

const (
	FootprintNormal Footprint = iota
	FootprintBig
)

// Size returns the playable extent of the footprint in world units.
func (f Footprint) Size() Vector2 {
	if f == FootprintBig {
		return Vector2{X: 42000, Y: 28200}
	}
	return Vector2{X: 21000, Y: 14100}
}

func (f Footprint) String() string {
	if f == FootprintBig {
		return "big"
	}
	return "normal"
}

// ParseFootprint accepts the names used by the map table.
func ParseFootprint(s string) (Footprint, error) {
	switch s {
	case "", "normal":
		return FootprintNormal, nil
	case "big":
		return FootprintBig, nil
	}
	return 0, fmt.Errorf("unknown footprint %q", s)
}

// MapSpec is the static description of a map.
type MapSpec struct {
	ID             int32
	Name           string
	Footprint      Footprint
	BonusBoxChance float64 // per sector
}

// portalRange is how close a ship has to be to use a portal.
const portalRange = 500

// Map is a cells×cells array of Grids plus an overflow grid for positions
// outside the footprint. Everything on a map is mutated by the worker that
// runs the map's zone; Post is the way in for everybody else.
type Map struct {
	env  *Env
	spec MapSpec
	log  *zap.Logger

	size      Vector2
	cellSize  Vector2
	cells     int
	scanCells GridIndex // neighbourhood half-extent covering the scan radius

	grids    [][]*Grid // [x][y]
	overflow *Grid

	constants []Entity
	pools     *PoolManager

	objMu   sync.RWMutex
	objects map[ident.ID]Entity
	players map[ident.ID]*Player

	jumpMu sync.Mutex
	jumps  map[ident.ID]*pendingJump

	inboxMu sync.Mutex
	inbox   []func()

	walking  bool
	deferred []Entity
	drifting map[ident.ID]Entity // in flight inside idle grids

	liveness IntervalTimer
}

func NewMap(env *Env, spec MapSpec) *Map {
	env.normalize()
	cells := env.Settings.GridCells
	size := spec.Footprint.Size()
	m := &Map{
		env:      env,
		spec:     spec,
		log:      env.Log.Named("map").With(zap.Int32("map", spec.ID)),
		size:     size,
		cellSize: Vector2{X: math.Floor(size.X / float64(cells)), Y: math.Floor(size.Y / float64(cells))},
		cells:    cells,
		objects:  make(map[ident.ID]Entity),
		players:  make(map[ident.ID]*Player),
		jumps:    make(map[ident.ID]*pendingJump),
		drifting: make(map[ident.ID]Entity),
		liveness: NewIntervalTimer(env.Settings.LivenessCheckInterval),
	}
	m.scanCells = GridIndex{
		X: int(math.Ceil(env.Settings.ScanRadius / m.cellSize.X)),
		Y: int(math.Ceil(env.Settings.ScanRadius / m.cellSize.Y)),
	}
	m.grids = make([][]*Grid, cells)
	for x := range m.grids {
		m.grids[x] = make([]*Grid, cells)
		for y := range m.grids[x] {
			m.grids[x][y] = newGrid(m, GridIndex{X: x, Y: y})
		}
	}
	m.overflow = newGrid(m, OverflowIndex)
	m.pools = newPoolManager(m)
	return m
}

func (m *Map) ID() int32           { return m.spec.ID }
func (m *Map) Name() string        { return m.spec.Name }
func (m *Map) Spec() MapSpec       { return m.spec }
func (m *Map) Size() Vector2       { return m.size }
func (m *Map) CellSize() Vector2   { return m.cellSize }
func (m *Map) Cells() int          { return m.cells }
func (m *Map) Pools() *PoolManager { return m.pools }
func (m *Map) Overflow() *Grid     { return m.overflow }
func (m *Map) Constants() []Entity { return m.constants }
func (m *Map) Env() *Env           { return m.env }
func (m *Map) String() string      { return fmt.Sprintf("map %d (%s)", m.spec.ID, m.spec.Name) }

func (m *Map) inRange(i GridIndex) bool {
	return i.X >= 0 && i.Y >= 0 && i.X < m.cells && i.Y < m.cells
}

// GridIndexFor floor-divides pos by the cell size. The result may be out of
// range; such positions live in the overflow grid.
func (m *Map) GridIndexFor(pos Vector2) GridIndex {
	return GridIndex{
		X: int(math.Floor(pos.X / m.cellSize.X)),
		Y: int(math.Floor(pos.Y / m.cellSize.Y)),
	}
}

// Grid returns the cell at i. An out-of-range index here is a broken
// invariant.
func (m *Map) Grid(i GridIndex) *Grid {
	if !m.inRange(i) {
		panic(fmt.Sprintf("world: grid index %s out of range on %s", i, m))
	}
	return m.grids[i.X][i.Y]
}

// GridAt routes i to its grid, the overflow grid for out-of-range indices.
func (m *Map) GridAt(i GridIndex) *Grid {
	if !m.inRange(i) {
		return m.overflow
	}
	return m.grids[i.X][i.Y]
}

// poolKey is the grid index pools file an entity under.
func (m *Map) poolKey(i GridIndex) GridIndex {
	if !m.inRange(i) {
		return OverflowIndex
	}
	return i
}

// ForEachGrid visits the regular grids in x-major order, then the overflow grid.
func (m *Map) ForEachGrid(fn func(*Grid)) {
	for x := range m.grids {
		for _, g := range m.grids[x] {
			fn(g)
		}
	}
	fn(m.overflow)
}

// AddConstant registers a portal or station. Constants are not in any grid;
// every player added to the map receives them.
func (m *Map) AddConstant(e Entity) {
	o := e.Base()
	if !o.Kind().Constant() {
		panic(fmt.Sprintf("world: %s is not a constant object", o))
	}
	o.setMap(m)
	m.constants = append(m.constants, e)
	m.objMu.Lock()
	m.objects[o.ID()] = e
	m.objMu.Unlock()
}

// Add places e in the grid matching its position. Adding an object that is
// still placed somewhere is a broken invariant.
func (m *Map) Add(e Entity) {
	o := e.Base()
	if o.Kind().Constant() {
		m.AddConstant(e)
		return
	}
	if o.Placed() {
		panic(fmt.Sprintf("world: add of %s which is already placed on %s", o, o.Map()))
	}
	o.setMap(m)
	idx := m.GridIndexFor(o.Position())
	g := m.GridAt(idx)
	o.cell = idx
	o.inRadiation = g == m.overflow
	g.Add(e)
	o.placed.Store(true)

	m.objMu.Lock()
	m.objects[o.ID()] = e
	p, isPlayer := e.(*Player)
	if isPlayer {
		m.players[o.ID()] = p
	}
	m.objMu.Unlock()

	if isPlayer {
		for _, c := range m.constants {
			p.Send(m.env.Codec.Constant(constantInfo(c)))
		}
	}
}

// Remove takes e out of its grid. The map pointer is left alone so callers
// can finish teardown before reassigning it.
func (m *Map) Remove(e Entity) bool {
	o := e.Base()
	if o.Map() != m || !o.Placed() {
		return false
	}
	m.GridAt(o.cell).Remove(e)
	o.placed.Store(false)

	m.objMu.Lock()
	delete(m.objects, o.ID())
	delete(m.players, o.ID())
	m.objMu.Unlock()
	return true
}

// Move re-derives the cell of e after its motion changed and rebroadcasts
// the new destination. Crossing cells while the grids are being walked is
// deferred until the walk ends. Must run on the map's worker; other
// goroutines go through Post.
func (m *Map) Move(e Entity) {
	o := e.Base()
	if o.Map() != m || !o.Placed() {
		panic(fmt.Sprintf("world: move of %s which is not placed on %s", o, m))
	}
	idx := m.GridIndexFor(o.Position())
	if idx != o.cell {
		if m.walking {
			m.deferred = append(m.deferred, e)
		} else {
			m.relocate(e, idx)
		}
	}
	dest := o.motion.Destination()
	buf := m.env.Codec.Move(uint64(o.ID()), dest.X, dest.Y, o.motion.ETA())
	m.forNeighbourhood(o.cell, func(g *Grid) { g.Move(e, buf) })
}

// noteMotion queues a cell re-check for an occupant whose interpolated
// position left its cell during flight.
func (m *Map) noteMotion(e Entity) {
	o := e.Base()
	if m.GridIndexFor(o.Position()) == o.cell {
		return
	}
	m.deferred = append(m.deferred, e)
}

// trackDrifting rechecks the cell of objects still flying inside idle
// grids, which are not walked. An object is dropped once it has landed.
func (m *Map) trackDrifting() {
	for id, e := range m.drifting {
		o := e.Base()
		if o.Map() != m || !o.Placed() {
			delete(m.drifting, id)
			continue
		}
		landed := !o.motion.Moving()
		m.noteMotion(e)
		if landed {
			delete(m.drifting, id)
		}
	}
}

// settle rechecks every occupant of a grid that just went idle and keeps
// the ones in flight on the drifting list.
func (m *Map) settle(g *Grid) {
	for _, e := range g.Snapshot() {
		o := e.Base()
		if o.Map() != m || !o.Placed() {
			continue
		}
		m.noteMotion(e)
		if o.motion.Moving() {
			m.drifting[o.ID()] = e
		}
	}
}

func (m *Map) applyDeferred() {
	pending := m.deferred
	m.deferred = nil
	for _, e := range pending {
		o := e.Base()
		if o.Map() != m || !o.Placed() {
			continue
		}
		if idx := m.GridIndexFor(o.Position()); idx != o.cell {
			m.relocate(e, idx)
		}
	}
}

// relocate is the only path that changes grid membership of a placed object.
func (m *Map) relocate(e Entity, idx GridIndex) {
	o := e.Base()
	from, to := m.GridAt(o.cell), m.GridAt(idx)
	oldKey := m.poolKey(o.cell)
	o.cell = idx
	if from == to {
		return
	}
	from.Remove(e)
	to.Add(e)
	if wasIn, nowIn := from == m.overflow, to == m.overflow; wasIn != nowIn {
		o.inRadiation = nowIn
		m.log.Debug("radiation zone crossing", zap.Stringer("object", o), zap.Bool("entered", nowIn))
	}
	if o.Kind().Ambient() {
		m.pools.relocate(e, oldKey, m.poolKey(idx))
	}
}

// forNeighbourhood visits the in-range grids within the scan radius of
// cell i, then the overflow grid.
func (m *Map) forNeighbourhood(i GridIndex, fn func(*Grid)) {
	minX, maxX := max(i.X-m.scanCells.X, 0), min(i.X+m.scanCells.X, m.cells-1)
	minY, maxY := max(i.Y-m.scanCells.Y, 0), min(i.Y+m.scanCells.Y, m.cells-1)
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			fn(m.grids[x][y])
		}
	}
	fn(m.overflow)
}

// updateView refreshes a player's perception: anything within the scan
// radius is perceived, then the table runs its despawn hysteresis.
func (m *Map) updateView(p *Player, diff time.Duration) {
	pos := p.Position()
	r := m.env.Settings.ScanRadius
	s := p.Surroundings()
	m.forNeighbourhood(p.cell, func(g *Grid) {
		for _, e := range g.Snapshot() {
			o := e.Base()
			if o == &p.Object || !visible(o) {
				continue
			}
			if pos.InRange(o.Position(), r) {
				s.Perceive(e)
			}
		}
	})
	s.Update(diff)
}

func visible(o *Object) bool {
	if o.Kind().Ambient() {
		return !o.ScheduledForDelete()
	}
	return !o.Dead()
}

func (m *Map) FindObject(id ident.ID) Entity {
	m.objMu.RLock()
	defer m.objMu.RUnlock()
	return m.objects[id]
}

func (m *Map) FindPlayer(id ident.ID) *Player {
	m.objMu.RLock()
	defer m.objMu.RUnlock()
	return m.players[id]
}

func (m *Map) Players() []*Player {
	m.objMu.RLock()
	defer m.objMu.RUnlock()
	out := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		out = append(out, p)
	}
	return out
}

func (m *Map) PlayerCount() int {
	m.objMu.RLock()
	defer m.objMu.RUnlock()
	return len(m.players)
}

// ObjectCount includes constants.
func (m *Map) ObjectCount() int {
	m.objMu.RLock()
	defer m.objMu.RUnlock()
	return len(m.objects)
}

// Post queues fn to run on the map's worker at the start of the next update.
func (m *Map) Post(fn func()) {
	m.inboxMu.Lock()
	m.inbox = append(m.inbox, fn)
	m.inboxMu.Unlock()
}

func (m *Map) drainInbox() {
	m.inboxMu.Lock()
	fns := m.inbox
	m.inbox = nil
	m.inboxMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Disconnect tears a leaving player down: out of the map, out of combat,
// visibility cleared without grace, any pending jump dropped. Returns the
// number of visibility entries cleared.
func (m *Map) Disconnect(p *Player) int {
	m.cancelJump(p.ID())
	m.Remove(p)
	p.CancelCombat()
	n := p.Surroundings().ForceClear()
	p.setMap(nil)
	m.log.Info("player disconnected", zap.Stringer("player", p), zap.Int("cleared", n))
	return n
}

// UsePortal queues a jump through a portal within reach of the player.
func (m *Map) UsePortal(p *Player, portalID ident.ID) (bool, error) {
	e := m.FindObject(portalID)
	portal, ok := e.(*Portal)
	if !ok {
		return false, fmt.Errorf("portal %s: %w", portalID, ErrNotOnMap)
	}
	if !p.Position().InRange(portal.Position(), portalRange) {
		return false, fmt.Errorf("portal %s: %w", portalID, ErrOutOfRange)
	}
	return m.AddToJumpQueue(p, portal.Target())
}

// Update advances the map one tick: pools, jump queue, active grids, then
// the overflow grid regardless of liveness.
func (m *Map) Update(diff time.Duration) {
	m.drainInbox()
	m.pools.Update(diff)
	m.ProcessJumpQueue(diff)

	m.walking = true
	for x := range m.grids {
		for _, g := range m.grids[x] {
			if g.State() == GridIdle {
				continue
			}
			g.Update(diff)
		}
	}
	m.overflow.Update(diff)
	m.walking = false
	m.trackDrifting()
	m.applyDeferred()

	m.liveness.Update(diff)
	if m.liveness.Passed() {
		m.liveness.Rewind()
		for x := range m.grids {
			for _, g := range m.grids[x] {
				if g.State() == GridActive && g.CheckForPlayer() == GridIdle {
					m.settle(g)
				}
			}
		}
		m.overflow.CheckForPlayer()
		m.applyDeferred()
	}
}

// ActiveGrids counts grids that are not idle, overflow excluded.
func (m *Map) ActiveGrids() int {
	n := 0
	for x := range m.grids {
		for _, g := range m.grids[x] {
			if g.State() == GridActive {
				n++
			}
		}
	}
	return n
}
