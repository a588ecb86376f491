package zone

import (
	"time"

	"github.com/orbitcore/server/internal/world"
)

// Zone is a fixed group of maps updated together by one worker. Two maps of
// the same zone never update concurrently.
type Zone struct {
	id   int
	maps []*world.Map
}

func newZone(id int) *Zone {
	return &Zone{id: id}
}

func (z *Zone) ID() int            { return z.id }
func (z *Zone) Maps() []*world.Map { return z.maps }

// Update advances every map of the zone in registration order.
func (z *Zone) Update(diff time.Duration) {
	for _, m := range z.maps {
		m.Update(diff)
	}
}
