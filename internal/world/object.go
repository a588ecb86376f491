package world

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/orbitcore/server/internal/core/ident"
	"github.com/orbitcore/server/internal/net/packet"
)

// Entity is anything that can occupy a Grid.
type Entity interface {
	Base() *Object
}

// Updater is implemented by occupants that act on every grid update.
type Updater interface {
	Update(diff time.Duration)
}

// CargoHolder is implemented by entities that drop a bonus box on death.
type CargoHolder interface {
	Cargo() Resources
}

// Object is the state shared by every occupant. The map pointer and cell are
// written only by the worker running the owning map's zone; the atomics let
// observers on other workers read them without tearing.
type Object struct {
	id     ident.ID
	name   string
	motion *Motion
	self   Entity

	m           atomic.Pointer[Map]
	placed      atomic.Bool // currently a member of some grid
	cell        GridIndex
	inRadiation bool

	dead               atomic.Bool
	scheduledForDelete atomic.Bool
}

func (o *Object) init(self Entity, id ident.ID, name string, motion *Motion) {
	o.self = self
	o.id = id
	o.name = name
	o.motion = motion
}

func (o *Object) Base() *Object { return o }

func (o *Object) ID() ident.ID          { return o.id }
func (o *Object) Kind() ident.Kind      { return o.id.Kind() }
func (o *Object) Name() string          { return o.name }
func (o *Object) Motion() *Motion       { return o.motion }
func (o *Object) Entity() Entity        { return o.self }
func (o *Object) Map() *Map             { return o.m.Load() }
func (o *Object) Placed() bool          { return o.placed.Load() }
func (o *Object) Cell() GridIndex       { return o.cell }
func (o *Object) InRadiationZone() bool { return o.inRadiation }

func (o *Object) setMap(m *Map) { o.m.Store(m) }

// Position interpolates the motion component. Always current.
func (o *Object) Position() Vector2 { return o.motion.UpdatePosition() }

func (o *Object) Dead() bool     { return o.dead.Load() }
func (o *Object) SetDead(v bool) { o.dead.Store(v) }

// ScheduleForDelete marks an ambient entity for the owning pool's next sweep.
func (o *Object) ScheduleForDelete()       { o.scheduledForDelete.Store(true) }
func (o *Object) ScheduledForDelete() bool { return o.scheduledForDelete.Load() }

// Move plans a flight to dest and lets the map re-evaluate the cell and
// rebroadcast. Moving an object that is not on a map is a broken invariant.
// Runs on the map's worker like Map.Move.
func (o *Object) Move(dest Vector2) time.Duration {
	m := o.Map()
	if m == nil {
		panic(fmt.Sprintf("world: move of %s which is not attached to a map", o.id))
	}
	eta := o.motion.plan(dest)
	m.Move(o.self)
	return eta
}

// spawnInfo is the buffer payload used when an observer first perceives o.
func (o *Object) spawnInfo() packet.ObjectInfo {
	pos := o.Position()
	dest := o.motion.Destination()
	return packet.ObjectInfo{
		ID:       uint64(o.id),
		Kind:     uint8(o.id.Kind()),
		Template: o.id.Template(),
		Name:     o.name,
		X:        pos.X,
		Y:        pos.Y,
		DestX:    dest.X,
		DestY:    dest.Y,
		ETA:      o.motion.ETA(),
	}
}

func (o *Object) String() string { return o.id.String() }
