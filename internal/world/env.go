package world

import (
	"context"
	"time"

	"github.com/orbitcore/server/internal/core/ident"
	"github.com/orbitcore/server/internal/net/packet"
	"go.uber.org/zap"
)

// Sender is the outgoing side of a client connection. Implementations must
// not block; the simulation calls Send from zone workers.
type Sender interface {
	Send(buf []byte)
}

// MapResolver finds the destination of a jump. The zone manager implements it.
type MapResolver interface {
	FindMap(id int32) *Map
}

// PlayerPosition is the persisted part of a player touched by this core.
type PlayerPosition struct {
	AccountID uint32
	Name      string
	MapID     int32
	X, Y      float64
}

// PlayerStore persists player positions. Calls block the calling zone.
type PlayerStore interface {
	SavePosition(ctx context.Context, pos PlayerPosition) error
}

// TemplateSource answers which mob templates populate a map.
type TemplateSource interface {
	MapMobs(ctx context.Context, mapID int32) ([]MapMob, error)
}

// Script derives runtime numbers from templates.
type Script interface {
	MobStats(t *MobTemplate, mapID int32) MobStats
	OreRegionClass(mapID int32) RegionClass
}

// Settings are the tunables supplied once at boot.
type Settings struct {
	GridCells             int
	ScanRadius            float64
	DespawnGrace          time.Duration
	JumpDelay             time.Duration
	LivenessCheckInterval time.Duration
	BonusBoxOwnerGrace    time.Duration
	MobRoamRadius         float64
	MobRoamInterval       time.Duration
	QueryTimeout          time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		GridCells:             8,
		ScanRadius:            2000,
		DespawnGrace:          3 * time.Second,
		JumpDelay:             2 * time.Second,
		LivenessCheckInterval: 5 * time.Second,
		BonusBoxOwnerGrace:    10 * time.Second,
		MobRoamRadius:         600,
		MobRoamInterval:       4 * time.Second,
		QueryTimeout:          5 * time.Second,
	}
}

// Env is the simulation context shared by every map. It replaces global
// managers: everything a map needs from outside arrives through here.
type Env struct {
	Settings  Settings
	Log       *zap.Logger
	Codec     *packet.Codec
	IDs       *ident.Generator
	Clock     func() time.Time
	Catalog   *Catalog
	Templates TemplateSource
	Script    Script
	Players   PlayerStore
	Maps      MapResolver
	Seed      int64
}

func (e *Env) normalize() {
	if e.Settings.GridCells == 0 {
		e.Settings = DefaultSettings()
	}
	if e.Log == nil {
		e.Log = zap.NewNop()
	}
	if e.Codec == nil {
		c, err := packet.NewCodec("utf-8")
		if err != nil {
			panic(err)
		}
		e.Codec = c
	}
	if e.IDs == nil {
		e.IDs = ident.NewGenerator(0)
	}
	if e.Clock == nil {
		e.Clock = time.Now
	}
	if e.Catalog == nil {
		e.Catalog = NewCatalog(nil, nil)
	}
	if e.Script == nil {
		e.Script = DefaultScript{}
	}
}

func (e *Env) Now() time.Time { return e.Clock() }

// queryContext bounds a blocking collaborator call from a zone worker.
func (e *Env) queryContext() (context.Context, context.CancelFunc) {
	if e.Settings.QueryTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), e.Settings.QueryTimeout)
}
