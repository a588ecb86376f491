package world

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/orbitcore/server/internal/core/ident"
	"github.com/orbitcore/server/internal/net/packet"
)

// Player is a connected ship. Its ID is derived from the account so it is
// stable across sessions.
type Player struct {
	Object

	accountID    uint32
	session      Sender
	surroundings *Surroundings

	target    atomic.Uint64 // ident.ID of the locked target, 0 = none
	attacking atomic.Bool

	cargoMu sync.Mutex
	cargo   Resources
}

func NewPlayer(accountID uint32, name string, pos Vector2, speed float64, session Sender, clock func() time.Time) *Player {
	p := &Player{accountID: accountID, session: session}
	p.init(p, ident.PlayerID(accountID), name, NewMotion(pos, speed, clock))
	p.surroundings = newSurroundings(p)
	return p
}

func (p *Player) AccountID() uint32 { return p.accountID }

// Surroundings is the player's visibility table.
func (p *Player) Surroundings() *Surroundings { return p.surroundings }

// Send forwards a buffer to the client; a player without a session drops it.
func (p *Player) Send(buf []byte) {
	if p.session != nil {
		p.session.Send(buf)
	}
}

// SetTarget locks onto id. Zero clears the lock.
func (p *Player) SetTarget(id ident.ID) { p.target.Store(uint64(id)) }
func (p *Player) Target() ident.ID      { return ident.ID(p.target.Load()) }

// IsTargeting reports whether id is the current lock.
func (p *Player) IsTargeting(id ident.ID) bool {
	return !id.IsZero() && p.Target() == id
}

func (p *Player) SetAttacking(v bool) { p.attacking.Store(v) }
func (p *Player) Attacking() bool     { return p.attacking.Load() }

// CancelCombat drops the target lock and stops any attack in progress.
func (p *Player) CancelCombat() {
	p.attacking.Store(false)
	p.target.Store(0)
}

// Cargo is a snapshot of what the ship carries.
func (p *Player) Cargo() Resources {
	p.cargoMu.Lock()
	defer p.cargoMu.Unlock()
	return p.cargo.Clone()
}

func (p *Player) SetCargo(r Resources) {
	p.cargoMu.Lock()
	p.cargo = r.Clone()
	p.cargoMu.Unlock()
}

// AddCargo merges looted resources into the hold.
func (p *Player) AddCargo(r Resources) {
	p.cargoMu.Lock()
	defer p.cargoMu.Unlock()
	p.cargo.Credits += r.Credits
	p.cargo.Uridium += r.Uridium
	p.cargo.Experience += r.Experience
	p.cargo.Honor += r.Honor
	for k, v := range r.Ore {
		if p.cargo.Ore == nil {
			p.cargo.Ore = make(map[uint32]int64)
		}
		p.cargo.Ore[k] += v
	}
}

// Update runs once per tick from the player's grid.
func (p *Player) Update(diff time.Duration) {
	m := p.Map()
	if m == nil || !p.Placed() {
		return
	}
	m.updateView(p, diff)
}

func (p *Player) initInfo() packet.InitInfo {
	pos := p.Position()
	var mapID int32
	if m := p.Map(); m != nil {
		mapID = m.ID()
	}
	return packet.InitInfo{
		ID:    uint64(p.ID()),
		Name:  p.Name(),
		MapID: mapID,
		X:     pos.X,
		Y:     pos.Y,
		Speed: p.motion.Speed(),
	}
}

func (p *Player) position() PlayerPosition {
	pos := p.Position()
	var mapID int32
	if m := p.Map(); m != nil {
		mapID = m.ID()
	}
	return PlayerPosition{
		AccountID: p.accountID,
		Name:      p.Name(),
		MapID:     mapID,
		X:         pos.X,
		Y:         pos.Y,
	}
}

// Snapshot returns the persisted view of the player.
func (p *Player) Snapshot() PlayerPosition { return p.position() }
