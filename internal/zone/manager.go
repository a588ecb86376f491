package zone

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/orbitcore/server/internal/world"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	ErrAlreadyPartitioned = errors.New("maps already partitioned into zones")
	ErrDuplicateMap       = errors.New("map already registered")
)

// Options are read once at boot.
type Options struct {
	Workers        int
	Interval       time.Duration // zone update throttle
	Multithreading bool
	OverrunWarn    time.Duration // minimum gap between overrun warnings
}

// Manager owns every map, splits them into zones at boot and drives the
// per-tick update.
type Manager struct {
	opts    Options
	log     *zap.Logger
	updater *Updater

	mu          sync.RWMutex
	maps        map[int32]*world.Map
	zones       []*Zone
	zoneOf      map[int32]*Zone
	partitioned bool

	timer   world.IntervalTimer
	overrun rate.Sometimes
	ticks   uint64
}

func NewManager(opts Options, log *zap.Logger) *Manager {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Manager{
		opts:    opts,
		log:     log.Named("zone"),
		updater: NewUpdater(opts.Workers),
		maps:    make(map[int32]*world.Map),
		zoneOf:  make(map[int32]*Zone),
		timer:   world.NewIntervalTimer(opts.Interval),
		overrun: rate.Sometimes{First: 1, Interval: opts.OverrunWarn},
	}
}

func (zm *Manager) Updater() *Updater { return zm.updater }

// RegisterMap adds m to the universe. Only allowed before Partition.
func (zm *Manager) RegisterMap(m *world.Map) error {
	zm.mu.Lock()
	defer zm.mu.Unlock()
	if zm.partitioned {
		return ErrAlreadyPartitioned
	}
	if _, ok := zm.maps[m.ID()]; ok {
		return fmt.Errorf("map %d: %w", m.ID(), ErrDuplicateMap)
	}
	zm.maps[m.ID()] = m
	return nil
}

// UnregisterMap drops a map before Partition.
func (zm *Manager) UnregisterMap(id int32) error {
	zm.mu.Lock()
	defer zm.mu.Unlock()
	if zm.partitioned {
		return ErrAlreadyPartitioned
	}
	if _, ok := zm.maps[id]; !ok {
		return fmt.Errorf("map %d: %w", id, world.ErrMapNotFound)
	}
	delete(zm.maps, id)
	return nil
}

// FindMap returns nil for unknown ids.
func (zm *Manager) FindMap(id int32) *world.Map {
	zm.mu.RLock()
	defer zm.mu.RUnlock()
	return zm.maps[id]
}

// Maps returns every registered map ordered by id.
func (zm *Manager) Maps() []*world.Map {
	zm.mu.RLock()
	defer zm.mu.RUnlock()
	out := make([]*world.Map, 0, len(zm.maps))
	for _, m := range zm.maps {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// LoadPools seeds the ambient population of every map concurrently.
func (zm *Manager) LoadPools(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(zm.opts.Workers)
	for _, m := range zm.Maps() {
		m := m
		g.Go(func() error {
			return m.Pools().Load(ctx)
		})
	}
	return g.Wait()
}

// Partition splits the maps into one zone per worker: an even share of
// consecutive map ids each, the remainder dealt out round-robin. The
// assignment never changes afterwards.
func (zm *Manager) Partition() []*Zone {
	maps := zm.Maps()

	zm.mu.Lock()
	defer zm.mu.Unlock()
	if zm.partitioned {
		return zm.zones
	}
	n := min(zm.opts.Workers, len(maps))
	if n == 0 {
		zm.partitioned = true
		return nil
	}
	zones := make([]*Zone, n)
	for i := range zones {
		zones[i] = newZone(i)
	}
	share := len(maps) / n
	for i, m := range maps[:share*n] {
		z := zones[i/share]
		z.maps = append(z.maps, m)
		zm.zoneOf[m.ID()] = z
	}
	for i, m := range maps[share*n:] {
		z := zones[i%n]
		z.maps = append(z.maps, m)
		zm.zoneOf[m.ID()] = z
	}
	zm.zones = zones
	zm.partitioned = true

	for _, z := range zones {
		ids := make([]int32, 0, len(z.maps))
		for _, m := range z.maps {
			ids = append(ids, m.ID())
		}
		zm.log.Info("zone partitioned", zap.Int("zone", z.id), zap.Int32s("maps", ids))
	}
	return zones
}

func (zm *Manager) Zones() []*Zone {
	zm.mu.RLock()
	defer zm.mu.RUnlock()
	return zm.zones
}

// ZoneOf returns the zone running mapID, nil before Partition.
func (zm *Manager) ZoneOf(mapID int32) *Zone {
	zm.mu.RLock()
	defer zm.mu.RUnlock()
	return zm.zoneOf[mapID]
}

// AddObject places e on a map at the start of that map's next update.
func (zm *Manager) AddObject(mapID int32, e world.Entity) error {
	m := zm.FindMap(mapID)
	if m == nil {
		return fmt.Errorf("add %s to %d: %w", e.Base(), mapID, world.ErrMapNotFound)
	}
	m.Post(func() { m.Add(e) })
	return nil
}

// RemoveObject takes e off its map at the start of that map's next update.
func (zm *Manager) RemoveObject(e world.Entity) error {
	m := e.Base().Map()
	if m == nil {
		return fmt.Errorf("remove %s: %w", e.Base(), world.ErrNotOnMap)
	}
	m.Post(func() { m.Remove(e) })
	return nil
}

// Disconnect schedules the teardown of a leaving player on its map.
func (zm *Manager) Disconnect(p *world.Player) error {
	m := p.Map()
	if m == nil {
		return fmt.Errorf("disconnect %s: %w", p, world.ErrNotOnMap)
	}
	m.Post(func() { m.Disconnect(p) })
	return nil
}

// Update advances the world once the zone interval has accumulated. The
// zones receive the accumulated time as their diff. Reports whether zones ran.
// Nothing runs after Shutdown.
func (zm *Manager) Update(diff time.Duration) bool {
	if !zm.updater.Active() {
		return false
	}
	zm.timer.Update(diff)
	if !zm.timer.Passed() {
		return false
	}
	elapsed := zm.timer.Elapsed()
	zm.timer.Reset()

	zones := zm.Zones()
	start := time.Now()
	if zm.opts.Multithreading {
		for _, z := range zones {
			zm.updater.ScheduleUpdate(z, elapsed)
		}
		zm.updater.Wait()
	} else {
		for _, z := range zones {
			if !zm.updater.Active() {
				break
			}
			z.Update(elapsed)
		}
	}
	zm.ticks++

	if took := time.Since(start); zm.opts.Interval > 0 && took > zm.opts.Interval {
		zm.overrun.Do(func() {
			zm.log.Warn("zone update overran interval",
				zap.Duration("took", took),
				zap.Duration("interval", zm.opts.Interval),
				zap.Uint64("tick", zm.ticks),
			)
		})
	}
	return true
}

// Ticks counts completed world steps.
func (zm *Manager) Ticks() uint64 { return zm.ticks }

// Shutdown stops further zone updates and waits for running ones.
func (zm *Manager) Shutdown() {
	zm.updater.Deactivate()
	zm.updater.Wait()
}
