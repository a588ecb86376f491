package world

import (
	"sync"
	"time"

	"github.com/orbitcore/server/internal/core/ident"
)

// SurroundingObject is one (observer, observed) pair of a visibility table.
type SurroundingObject struct {
	observed  Entity
	scheduled bool
	grace     IntervalTimer
}

func (s *SurroundingObject) Observed() Entity { return s.observed }

// ScheduledForDespawn reports whether the grace timer is running.
func (s *SurroundingObject) ScheduledForDespawn() bool { return s.scheduled }

// Surroundings is a player's visibility table: what the client currently
// has spawned. Leaving the scan radius starts a grace timer instead of
// despawning right away, so objects at the edge do not flicker.
type Surroundings struct {
	owner *Player

	mu      sync.Mutex
	entries map[ident.ID]*SurroundingObject
}

func newSurroundings(owner *Player) *Surroundings {
	return &Surroundings{owner: owner, entries: make(map[ident.ID]*SurroundingObject)}
}

func (s *Surroundings) env() *Env {
	if m := s.owner.Map(); m != nil {
		return m.env
	}
	return nil
}

// Perceive records that e is within the scan radius. A new entry spawns e
// on the client; a pending despawn is cancelled without any packet.
func (s *Surroundings) Perceive(e Entity) {
	env := s.env()
	if env == nil {
		return
	}
	id := e.Base().ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if so, ok := s.entries[id]; ok {
		if so.scheduled {
			so.scheduled = false
			so.grace.Reset()
		}
		return
	}
	s.entries[id] = &SurroundingObject{
		observed: e,
		grace:    NewIntervalTimer(env.Settings.DespawnGrace),
	}
	s.owner.Send(env.Codec.Spawn(spawnInfoOf(e)))
}

// Add tracks e unconditionally, as if it had just been perceived.
func (s *Surroundings) Add(e Entity) { s.Perceive(e) }

// Update runs the despawn state machine over every entry.
func (s *Surroundings) Update(diff time.Duration) {
	env := s.env()
	if env == nil {
		return
	}
	pos := s.owner.Position()
	r := env.Settings.ScanRadius
	here := s.owner.Map()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, so := range s.entries {
		o := so.observed.Base()
		if gone(o, here) {
			s.despawnLocked(env, id)
			continue
		}
		if so.scheduled {
			so.grace.Update(diff)
			if so.grace.Passed() {
				s.tryDespawnLocked(env, id, so)
			}
			continue
		}
		if !pos.InRange(o.Position(), r) {
			so.scheduled = true
			so.grace.Reset()
		}
	}
}

// gone reports whether an observed object must vanish without grace: a dead
// ship, an ambient entity handed to its pool's sweep, or anything no longer
// placed on the observer's map.
func gone(o *Object, here *Map) bool {
	if o.Kind().Ambient() {
		if o.ScheduledForDelete() {
			return true
		}
	} else if o.Dead() {
		return true
	}
	return !o.Placed() || o.Map() != here
}

// Despawn removes id after its grace period. It is refused, and the grace
// restarted, while the owner still targets it.
func (s *Surroundings) Despawn(id ident.ID) bool {
	env := s.env()
	if env == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	so, ok := s.entries[id]
	if !ok {
		return false
	}
	return s.tryDespawnLocked(env, id, so)
}

func (s *Surroundings) tryDespawnLocked(env *Env, id ident.ID, so *SurroundingObject) bool {
	if s.owner.IsTargeting(id) {
		so.grace.Reset()
		return false
	}
	s.despawnLocked(env, id)
	return true
}

func (s *Surroundings) despawnLocked(env *Env, id ident.ID) {
	delete(s.entries, id)
	s.owner.Send(env.Codec.RemoveObject(uint64(id)))
}

// ForceClear despawns and untracks everything without grace. Used when the
// owner disconnects or jumps. Returns the number of entries cleared.
func (s *Surroundings) ForceClear() int {
	env := s.env()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	for id := range s.entries {
		if env != nil {
			s.despawnLocked(env, id)
		} else {
			delete(s.entries, id)
		}
	}
	return n
}

// Tracks reports whether the client currently has id spawned.
func (s *Surroundings) Tracks(id ident.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// Scheduled reports whether id is waiting out its despawn grace.
func (s *Surroundings) Scheduled(id ident.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	so, ok := s.entries[id]
	return ok && so.scheduled
}

func (s *Surroundings) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// IDs lists tracked ids in no particular order.
func (s *Surroundings) IDs() []ident.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ident.ID, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	return out
}
