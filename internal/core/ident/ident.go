package ident

import (
	"fmt"
	"math"
	"sync/atomic"
)

// ID encodes a kind tag in the top 8 bits, an optional template id in the
// next 24 bits and a counter in the low 32 bits. IDs are never reused.
type ID uint64

const (
	kindShift     = 56
	templateShift = 32
	templateMask  = 1<<24 - 1

	// MaxTemplate is the largest template id that fits in an ID.
	MaxTemplate = templateMask
)

// Kind tags what an object is. The tag is part of the ID so any holder of an
// ID can tell a player from a mob without a lookup.
type Kind uint8

const (
	KindNone Kind = iota
	KindPlayer
	KindMob
	KindOre
	KindBonusBox
	KindPortal
	KindStation
)

var kindNames = [...]string{
	KindNone:     "none",
	KindPlayer:   "player",
	KindMob:      "mob",
	KindOre:      "ore",
	KindBonusBox: "bonusbox",
	KindPortal:   "portal",
	KindStation:  "station",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Ambient reports whether objects of this kind are seeded and owned by a pool.
func (k Kind) Ambient() bool {
	return k == KindMob || k == KindOre || k == KindBonusBox
}

// Constant reports whether objects of this kind are always visible on their map.
func (k Kind) Constant() bool {
	return k == KindPortal || k == KindStation
}

// New packs an ID. Panics when template does not fit in 24 bits.
func New(kind Kind, template uint32, counter uint32) ID {
	if template > MaxTemplate {
		panic(fmt.Sprintf("ident: template %d exceeds %d", template, MaxTemplate))
	}
	return ID(uint64(kind)<<kindShift | uint64(template)<<templateShift | uint64(counter))
}

// PlayerID derives the stable player ID from an account id.
func PlayerID(accountID uint32) ID {
	return New(KindPlayer, 0, accountID)
}

func (id ID) Kind() Kind        { return Kind(id >> kindShift) }
func (id ID) Template() uint32  { return uint32(id>>templateShift) & templateMask }
func (id ID) Counter() uint32   { return uint32(id) }
func (id ID) IsZero() bool      { return id == 0 }
func (id ID) Is(kind Kind) bool { return id.Kind() == kind }

func (id ID) String() string {
	if t := id.Template(); t != 0 {
		return fmt.Sprintf("%s:%d:%d", id.Kind(), t, id.Counter())
	}
	return fmt.Sprintf("%s:%d", id.Kind(), id.Counter())
}

// Generator hands out IDs for every non-player object. One generator is
// shared by all maps; it is safe for concurrent use from zone workers.
type Generator struct {
	counter atomic.Uint64
}

// NewGenerator returns a generator whose first counter value is start+1.
func NewGenerator(start uint32) *Generator {
	g := &Generator{}
	g.counter.Store(uint64(start))
	return g
}

// Next allocates a fresh ID. Running out of counter space is fatal: a wrapped
// counter would hand out IDs that are still live.
func (g *Generator) Next(kind Kind, template uint32) ID {
	if kind == KindPlayer {
		panic("ident: player ids are derived from accounts, not generated")
	}
	n := g.counter.Add(1)
	if n > math.MaxUint32 {
		panic(fmt.Sprintf("ident: counter exhausted allocating %s", kind))
	}
	return New(kind, template, uint32(n))
}

// Issued returns how many IDs the generator has handed out beyond its start.
func (g *Generator) Issued() uint64 {
	return g.counter.Load()
}
