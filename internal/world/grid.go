package world

import (
	"fmt"
	"sync"
	"time"

	"github.com/orbitcore/server/internal/core/ident"
)

// GridIndex addresses a cell of a Map. Out-of-range indices belong to the
// overflow grid.
type GridIndex struct {
	X, Y int
}

// OverflowIndex is the key the overflow grid is stored under.
var OverflowIndex = GridIndex{X: -1, Y: -1}

func (i GridIndex) String() string {
	if i == OverflowIndex {
		return "overflow"
	}
	return fmt.Sprintf("(%d,%d)", i.X, i.Y)
}

// GridState is the liveness of a Grid. Idle grids are skipped by Map.Update.
type GridState uint8

const (
	GridIdle GridState = iota
	GridActive
)

func (s GridState) String() string {
	if s == GridActive {
		return "active"
	}
	return "idle"
}

// Grid is one cell of a Map and the unit of locking. It references its
// occupants; ambient occupants are owned by the map's pools.
type Grid struct {
	index GridIndex
	m     *Map

	mu      sync.Mutex
	objects map[ident.ID]Entity
	players map[ident.ID]*Player
	state   GridState
}

func newGrid(m *Map, index GridIndex) *Grid {
	return &Grid{
		index:   index,
		m:       m,
		objects: make(map[ident.ID]Entity),
		players: make(map[ident.ID]*Player),
	}
}

func (g *Grid) Index() GridIndex { return g.index }

// Overflow reports whether this is the map's catch-all grid.
func (g *Grid) Overflow() bool { return g.index == OverflowIndex }

// Add inserts e. Adding a player always activates the grid.
func (g *Grid) Add(e Entity) {
	id := e.Base().ID()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[id] = e
	if p, ok := e.(*Player); ok {
		g.players[id] = p
		g.state = GridActive
	}
}

// Remove drops e and reports whether it was present. Liveness is left to
// CheckForPlayer.
func (g *Grid) Remove(e Entity) bool {
	id := e.Base().ID()
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.objects[id]; !ok {
		return false
	}
	delete(g.objects, id)
	delete(g.players, id)
	return true
}

func (g *Grid) Find(id ident.ID) Entity {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.objects[id]
}

func (g *Grid) FindPlayer(id ident.ID) *Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.players[id]
}

func (g *Grid) Contains(id ident.ID) bool {
	return g.Find(id) != nil
}

// Snapshot copies the occupant set so callers can iterate without the lock.
func (g *Grid) Snapshot() []Entity {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Entity, 0, len(g.objects))
	for _, e := range g.objects {
		out = append(out, e)
	}
	return out
}

func (g *Grid) Players() []*Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, p)
	}
	return out
}

func (g *Grid) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.objects)
}

func (g *Grid) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

func (g *Grid) State() GridState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// CheckForPlayer demotes an active grid with no players to idle. It never
// promotes: only Add does that.
func (g *Grid) CheckForPlayer() GridState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == GridActive && len(g.players) == 0 {
		g.state = GridIdle
	}
	return g.state
}

// Update runs every occupant that acts on ticks, over a snapshot so
// occupants may leave the grid while it is being walked. Occupants whose
// position drifted into another cell are handed back to the map.
func (g *Grid) Update(diff time.Duration) {
	for _, e := range g.Snapshot() {
		o := e.Base()
		if u, ok := e.(Updater); ok {
			u.Update(diff)
		}
		if o.Map() == g.m && o.Placed() {
			g.m.noteMotion(e)
		}
	}
}

// Move sends a movement buffer to the players of this grid that currently
// perceive the mover.
func (g *Grid) Move(mover Entity, buf []byte) {
	id := mover.Base().ID()
	g.mu.Lock()
	defer g.mu.Unlock()
	for pid, p := range g.players {
		if pid == id {
			continue
		}
		if p.Surroundings().Tracks(id) {
			p.Send(buf)
		}
	}
}

// Broadcast sends buf to every player in the grid except the one with id
// except (zero sends to all).
func (g *Grid) Broadcast(buf []byte, except ident.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for pid, p := range g.players {
		if pid != except {
			p.Send(buf)
		}
	}
}
