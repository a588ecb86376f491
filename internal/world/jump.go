package world

import (
	"fmt"
	"time"

	"github.com/orbitcore/server/internal/core/ident"
	"go.uber.org/zap"
)

// JumpDestination is where a queued jump lands.
type JumpDestination struct {
	MapID    int32
	Position Vector2
}

type pendingJump struct {
	player *Player
	dest   JumpDestination
	timer  IntervalTimer
}

func (m *Map) resolve(id int32) *Map {
	if id == m.spec.ID {
		return m
	}
	if m.env.Maps == nil {
		return nil
	}
	return m.env.Maps.FindMap(id)
}

// AddToJumpQueue starts the jump delay for p. A second request while one is
// pending is ignored and reports false.
func (m *Map) AddToJumpQueue(p *Player, dest JumpDestination) (bool, error) {
	if m.resolve(dest.MapID) == nil {
		return false, fmt.Errorf("jump to %d: %w", dest.MapID, ErrMapNotFound)
	}
	if p.Map() != m {
		return false, fmt.Errorf("jump of %s: %w", p, ErrNotOnMap)
	}
	delay := m.env.Settings.JumpDelay

	m.jumpMu.Lock()
	if _, ok := m.jumps[p.ID()]; ok {
		m.jumpMu.Unlock()
		return false, nil
	}
	m.jumps[p.ID()] = &pendingJump{player: p, dest: dest, timer: NewIntervalTimer(delay)}
	m.jumpMu.Unlock()

	p.Send(m.env.Codec.JumpStart(dest.MapID, delay))
	return true, nil
}

// JumpPending reports whether id has a jump queued on this map.
func (m *Map) JumpPending(id ident.ID) bool {
	m.jumpMu.Lock()
	defer m.jumpMu.Unlock()
	_, ok := m.jumps[id]
	return ok
}

func (m *Map) cancelJump(id ident.ID) {
	m.jumpMu.Lock()
	delete(m.jumps, id)
	m.jumpMu.Unlock()
}

// ProcessJumpQueue advances every pending jump by diff and performs the ones
// whose delay has run out.
func (m *Map) ProcessJumpQueue(diff time.Duration) {
	var due []*pendingJump
	m.jumpMu.Lock()
	for id, j := range m.jumps {
		j.timer.Update(diff)
		if j.timer.Passed() {
			due = append(due, j)
			delete(m.jumps, id)
		}
	}
	m.jumpMu.Unlock()

	for _, j := range due {
		m.jump(j)
	}
}

// jump relocates the player. Combat and visibility are torn down while the
// player still points at the source map; the persisted snapshot is taken
// before the destination can see the player. Another map is only touched
// from its own worker, so the add and the save run there through Post.
func (m *Map) jump(j *pendingJump) {
	p := j.player
	dest := m.resolve(j.dest.MapID)
	if dest == nil {
		m.log.Error("jump destination vanished", zap.Stringer("player", p), zap.Int32("dest", j.dest.MapID))
		return
	}
	if p.Map() != m || !p.Placed() {
		return
	}

	m.Remove(p)
	p.CancelCombat()
	p.Surroundings().ForceClear()
	p.setMap(dest)
	p.motion.Teleport(j.dest.Position)
	p.Send(m.env.Codec.InitState(p.initInfo()))
	snap := p.position()

	m.log.Info("player jumped",
		zap.Stringer("player", p),
		zap.Int32("dest", dest.ID()),
		zap.Float64("x", snap.X),
		zap.Float64("y", snap.Y),
	)

	if dest == m {
		m.land(p, snap)
		return
	}
	dest.Post(func() { dest.land(p, snap) })
}

// land re-adds a jumped player and persists where it arrived.
func (m *Map) land(p *Player, snap PlayerPosition) {
	if p.Map() != m || p.Placed() {
		return
	}
	m.Add(p)

	if m.env.Players == nil {
		return
	}
	ctx, cancel := m.env.queryContext()
	defer cancel()
	if err := m.env.Players.SavePosition(ctx, snap); err != nil {
		m.log.Error("save position after jump", zap.Stringer("player", p), zap.Error(err))
	}
}
