package zone

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Updater fans zone updates out to at most workers goroutines and joins
// them once per tick.
type Updater struct {
	workers int

	mu    sync.Mutex
	group *errgroup.Group

	pending   atomic.Int64
	completed atomic.Uint64
	cancelled atomic.Bool
}

func NewUpdater(workers int) *Updater {
	if workers < 1 {
		workers = 1
	}
	return &Updater{workers: workers}
}

func (u *Updater) Workers() int { return u.workers }

// ScheduleUpdate queues one update of z. It blocks while every worker is busy.
func (u *Updater) ScheduleUpdate(z *Zone, diff time.Duration) {
	u.mu.Lock()
	if u.group == nil {
		u.group = new(errgroup.Group)
		u.group.SetLimit(u.workers)
	}
	g := u.group
	u.mu.Unlock()

	u.pending.Add(1)
	g.Go(func() error {
		defer u.pending.Add(-1)
		if u.cancelled.Load() {
			return nil
		}
		z.Update(diff)
		u.completed.Add(1)
		return nil
	})
}

// Wait blocks until every update scheduled since the last Wait has finished.
func (u *Updater) Wait() {
	u.mu.Lock()
	g := u.group
	u.group = nil
	u.mu.Unlock()
	if g != nil {
		_ = g.Wait()
	}
}

// Deactivate stops zone updates that have not started yet. A running update
// always finishes.
func (u *Updater) Deactivate()    { u.cancelled.Store(true) }
func (u *Updater) Active() bool   { return !u.cancelled.Load() }
func (u *Updater) Pending() int64 { return u.pending.Load() }

// Completed counts zone updates that ran to the end.
func (u *Updater) Completed() uint64 { return u.completed.Load() }
