package world

import "github.com/orbitcore/server/internal/core/ident"

// Pool stores one kind of ambient entity of a map, keyed by the grid each
// entity occupies and then by id. It has no lock: only the worker running
// the map's zone touches it. T is always one of the Ambient kinds; the
// constraint is any because Ambient reaches back to Pool through Map.
type Pool[T any] struct {
	byGrid map[GridIndex]map[ident.ID]T
	count  int
}

func newPool[T any]() *Pool[T] {
	return &Pool[T]{byGrid: make(map[GridIndex]map[ident.ID]T)}
}

func pooled[T any](e T) *Object { return any(e).(Ambient).Base() }

func (p *Pool[T]) add(key GridIndex, e T) {
	set := p.byGrid[key]
	if set == nil {
		set = make(map[ident.ID]T)
		p.byGrid[key] = set
	}
	id := pooled(e).ID()
	if _, ok := set[id]; !ok {
		p.count++
	}
	set[id] = e
}

func (p *Pool[T]) remove(key GridIndex, id ident.ID) (T, bool) {
	var zero T
	set := p.byGrid[key]
	e, ok := set[id]
	if !ok {
		return zero, false
	}
	delete(set, id)
	if len(set) == 0 {
		delete(p.byGrid, key)
	}
	p.count--
	return e, true
}

// rekey moves id from one grid bucket to another after a cell crossing.
func (p *Pool[T]) rekey(from, to GridIndex, id ident.ID) bool {
	e, ok := p.remove(from, id)
	if !ok {
		return false
	}
	p.add(to, e)
	return true
}

// Find looks id up in the bucket of key.
func (p *Pool[T]) Find(key GridIndex, id ident.ID) (T, bool) {
	e, ok := p.byGrid[key][id]
	return e, ok
}

// InGrid lists the entities filed under key.
func (p *Pool[T]) InGrid(key GridIndex) []T {
	set := p.byGrid[key]
	out := make([]T, 0, len(set))
	for _, e := range set {
		out = append(out, e)
	}
	return out
}

func (p *Pool[T]) Len() int { return p.count }

// sweep deletes every entity flagged for delete and returns them.
func (p *Pool[T]) sweep() []T {
	var removed []T
	for key, set := range p.byGrid {
		for id, e := range set {
			if !pooled(e).ScheduledForDelete() {
				continue
			}
			delete(set, id)
			p.count--
			removed = append(removed, e)
		}
		if len(set) == 0 {
			delete(p.byGrid, key)
		}
	}
	return removed
}
