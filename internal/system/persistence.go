package system

import (
	"context"
	"time"

	coresys "github.com/orbitcore/server/internal/core/system"
	"github.com/orbitcore/server/internal/world"
	"go.uber.org/zap"
)

// MapSource lists the maps whose players get saved.
type MapSource interface {
	Maps() []*world.Map
}

// PositionSaver writes a batch of player positions.
type PositionSaver interface {
	SavePositions(ctx context.Context, batch []world.PlayerPosition) error
}

// PersistenceSystem periodically auto-saves the position of every online
// player. Phase 1 (Persist). It runs between zone updates, so no map is
// being mutated while it reads.
type PersistenceSystem struct {
	maps    MapSource
	saver   PositionSaver
	log     *zap.Logger
	timer   world.IntervalTimer
	timeout time.Duration
	saved   int
}

func NewPersistenceSystem(maps MapSource, saver PositionSaver, interval, timeout time.Duration, log *zap.Logger) *PersistenceSystem {
	return &PersistenceSystem{
		maps:    maps,
		saver:   saver,
		log:     log.Named("persist"),
		timer:   world.NewIntervalTimer(interval),
		timeout: timeout,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(dt time.Duration) {
	s.timer.Update(dt)
	if !s.timer.Passed() {
		return
	}
	s.timer.Reset()
	s.savePlayers("autosave")
}

// SaveAllPlayers persists every online player immediately. Called on
// graceful shutdown.
func (s *PersistenceSystem) SaveAllPlayers() int {
	return s.savePlayers("shutdown")
}

// Saved is the number of positions written so far.
func (s *PersistenceSystem) Saved() int { return s.saved }

func (s *PersistenceSystem) savePlayers(reason string) int {
	var batch []world.PlayerPosition
	for _, m := range s.maps.Maps() {
		for _, p := range m.Players() {
			batch = append(batch, p.Snapshot())
		}
	}
	if len(batch) == 0 {
		return 0
	}

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.saver.SavePositions(ctx, batch); err != nil {
		s.log.Error("save players failed", zap.String("reason", reason), zap.Int("players", len(batch)), zap.Error(err))
		return 0
	}
	s.saved += len(batch)
	s.log.Info("players saved", zap.String("reason", reason), zap.Int("players", len(batch)))
	return len(batch)
}
