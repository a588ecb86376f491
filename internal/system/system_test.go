package system

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orbitcore/server/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type nopSender struct{}

func (nopSender) Send([]byte) {}

type fixedMaps []*world.Map

func (f fixedMaps) Maps() []*world.Map { return f }

type recordingSaver struct {
	batches [][]world.PlayerPosition
	err     error
}

func (r *recordingSaver) SavePositions(ctx context.Context, batch []world.PlayerPosition) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, batch)
	return nil
}

type countingDriver struct {
	every int
	calls int
}

func (d *countingDriver) Update(time.Duration) bool {
	d.calls++
	return d.calls%d.every == 0
}

func populated(t *testing.T) fixedMaps {
	t.Helper()
	env := &world.Env{Log: zaptest.NewLogger(t)}
	a := world.NewMap(env, world.MapSpec{ID: 1, Name: "1-1"})
	b := world.NewMap(env, world.MapSpec{ID: 2, Name: "1-2"})
	a.Add(world.NewPlayer(1, "one", world.Vector2{X: 100, Y: 200}, 300, nopSender{}, nil))
	b.Add(world.NewPlayer(2, "two", world.Vector2{X: 300, Y: 400}, 300, nopSender{}, nil))
	return fixedMaps{a, b}
}

func TestWorldSystemCountsSteps(t *testing.T) {
	d := &countingDriver{every: 2}
	s := NewWorldSystem(d)
	for i := 0; i < 5; i++ {
		s.Update(50 * time.Millisecond)
	}
	assert.Equal(t, 5, d.calls)
	assert.Equal(t, uint64(2), s.Steps())
}

func TestPersistenceAutosaveInterval(t *testing.T) {
	saver := &recordingSaver{}
	s := NewPersistenceSystem(populated(t), saver, time.Second, time.Second, zaptest.NewLogger(t))

	s.Update(600 * time.Millisecond)
	assert.Empty(t, saver.batches)
	s.Update(600 * time.Millisecond)
	require.Len(t, saver.batches, 1)
	assert.ElementsMatch(t, []world.PlayerPosition{
		{AccountID: 1, Name: "one", MapID: 1, X: 100, Y: 200},
		{AccountID: 2, Name: "two", MapID: 2, X: 300, Y: 400},
	}, saver.batches[0])

	s.Update(600 * time.Millisecond)
	assert.Len(t, saver.batches, 1, "timer restarts after a save")
	assert.Equal(t, 2, s.Saved())
}

func TestPersistenceSaveAllPlayers(t *testing.T) {
	saver := &recordingSaver{}
	s := NewPersistenceSystem(populated(t), saver, time.Hour, time.Second, zaptest.NewLogger(t))
	assert.Equal(t, 2, s.SaveAllPlayers())

	empty := NewPersistenceSystem(fixedMaps{}, saver, time.Hour, time.Second, zaptest.NewLogger(t))
	assert.Zero(t, empty.SaveAllPlayers())
	assert.Len(t, saver.batches, 1)
}

func TestPersistenceLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	saver := &recordingSaver{err: errors.New("disk full")}
	s := NewPersistenceSystem(populated(t), saver, time.Hour, time.Second, zap.New(core))

	assert.Zero(t, s.SaveAllPlayers())
	assert.Equal(t, 1, logs.FilterMessage("save players failed").Len())
	assert.Zero(t, s.Saved())
}
