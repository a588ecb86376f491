package system

import (
	"time"

	coresys "github.com/orbitcore/server/internal/core/system"
)

// ZoneDriver is the part of the zone manager the tick loop drives.
type ZoneDriver interface {
	Update(diff time.Duration) bool
}

// WorldSystem advances every zone. Phase 0 (Update).
type WorldSystem struct {
	zones ZoneDriver
	steps uint64
}

func NewWorldSystem(zones ZoneDriver) *WorldSystem {
	return &WorldSystem{zones: zones}
}

func (s *WorldSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *WorldSystem) Update(dt time.Duration) {
	if s.zones.Update(dt) {
		s.steps++
	}
}

// Steps counts ticks on which the zones actually ran.
func (s *WorldSystem) Steps() uint64 { return s.steps }
