package world

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/orbitcore/server/internal/core/ident"
	"github.com/orbitcore/server/internal/net/packet"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu   sync.Mutex
	bufs [][]byte
}

func (r *recorder) Send(buf []byte) {
	r.mu.Lock()
	r.bufs = append(r.bufs, buf)
	r.mu.Unlock()
}

func (r *recorder) count(op byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.bufs {
		if packet.Opcode(b) == op {
			n++
		}
	}
	return n
}

// last returns the most recent buffer with opcode op, or nil.
func (r *recorder) last(op byte) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.bufs) - 1; i >= 0; i-- {
		if packet.Opcode(r.bufs[i]) == op {
			return r.bufs[i]
		}
	}
	return nil
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.bufs = nil
	r.mu.Unlock()
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeTemplates map[int32][]MapMob

func (f fakeTemplates) MapMobs(_ context.Context, mapID int32) ([]MapMob, error) {
	return f[mapID], nil
}

type resolver map[int32]*Map

func (r resolver) FindMap(id int32) *Map { return r[id] }

type fakeStore struct {
	mu    sync.Mutex
	saved []PlayerPosition
}

func (s *fakeStore) SavePosition(_ context.Context, pos PlayerPosition) error {
	s.mu.Lock()
	s.saved = append(s.saved, pos)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) all() []PlayerPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PlayerPosition(nil), s.saved...)
}

func newTestEnv(t *testing.T) (*Env, *manualClock) {
	t.Helper()
	clk := newClock()
	env := &Env{
		Settings: DefaultSettings(),
		Log:      zaptest.NewLogger(t),
		IDs:      ident.NewGenerator(0),
		Clock:    clk.Now,
		Seed:     42,
	}
	env.Settings.MobRoamRadius = 0
	return env, clk
}

func newTestMap(t *testing.T, env *Env, id int32) *Map {
	t.Helper()
	return NewMap(env, MapSpec{ID: id, Name: "test", Footprint: FootprintNormal})
}

func newTestPlayer(account uint32, pos Vector2, clk *manualClock) (*Player, *recorder) {
	rec := &recorder{}
	return NewPlayer(account, "pilot", pos, 300, rec, clk.Now), rec
}

var testMobTemplate = MobTemplate{
	ID:           1,
	Name:         "Streuner",
	HP:           800,
	Shield:       400,
	Damage:       20,
	Speed:        320,
	Loot:         Resources{Credits: 400, Experience: 400, Honor: 2},
	RespawnDelay: time.Second,
}

func newTestMob(env *Env, pos Vector2) *Mob {
	t := testMobTemplate
	id := env.IDs.Next(ident.KindMob, t.ID)
	return newMob(id, &t, DefaultScript{}.MobStats(&t, 1), pos, GridIndex{}, false, env.Clock, env.Settings.MobRoamInterval)
}

// dummy is a bare occupant that counts its updates.
type dummy struct {
	Object
	updates  int
	onUpdate func()
}

func newDummy(env *Env, pos Vector2) *dummy {
	p := &dummy{}
	p.init(p, env.IDs.Next(ident.KindMob, 0), "dummy", NewMotion(pos, 100, env.Clock))
	return p
}

func (p *dummy) Update(time.Duration) {
	p.updates++
	if p.onUpdate != nil {
		p.onUpdate()
	}
}

// gridsContaining lists every grid of m, overflow included, holding id.
func gridsContaining(m *Map, id ident.ID) []*Grid {
	var out []*Grid
	m.ForEachGrid(func(g *Grid) {
		if g.Contains(id) {
			out = append(out, g)
		}
	})
	return out
}
