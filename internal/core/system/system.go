package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseUpdate  Phase = iota // 0: zone updates
	PhasePersist              // 1: autosave between zone updates
)

func (p Phase) String() string {
	switch p {
	case PhaseUpdate:
		return "update"
	case PhasePersist:
		return "persist"
	}
	return "unknown"
}

// System is the interface every driver system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
