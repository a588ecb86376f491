package ident

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDPacking(t *testing.T) {
	id := New(KindMob, 42, 7)

	assert.Equal(t, KindMob, id.Kind())
	assert.Equal(t, uint32(42), id.Template())
	assert.Equal(t, uint32(7), id.Counter())
	assert.Equal(t, "mob:42:7", id.String())
	assert.True(t, id.Kind().Ambient())
}

func TestPlayerIDIsStable(t *testing.T) {
	a := PlayerID(1001)
	b := PlayerID(1001)

	require.Equal(t, a, b)
	assert.Equal(t, KindPlayer, a.Kind())
	assert.Equal(t, "player:1001", a.String())
	assert.False(t, a.Kind().Ambient())
}

func TestTemplateOverflowPanics(t *testing.T) {
	assert.Panics(t, func() { New(KindOre, MaxTemplate+1, 1) })
}

func TestGeneratorNeverRepeats(t *testing.T) {
	g := NewGenerator(0)

	var mu sync.Mutex
	seen := make(map[uint32]struct{})
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id := g.Next(KindOre, 3)
				mu.Lock()
				seen[id.Counter()] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 4000)
	assert.Equal(t, uint64(4000), g.Issued())
}

func TestGeneratorExhaustionIsFatal(t *testing.T) {
	g := NewGenerator(math.MaxUint32 - 1)

	id := g.Next(KindMob, 1)
	assert.Equal(t, uint32(math.MaxUint32), id.Counter())
	assert.Panics(t, func() { g.Next(KindMob, 1) })
}

func TestGeneratorRefusesPlayers(t *testing.T) {
	assert.Panics(t, func() { NewGenerator(0).Next(KindPlayer, 0) })
}
