package world

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Motion stores a straight-line flight toward a planned destination.
// Position is never ticked: UpdatePosition interpolates from the issue time,
// so callers must go through it before any authoritative read.
type Motion struct {
	mu       sync.Mutex
	now      func() time.Time
	start    Vector2
	current  Vector2
	dest     Vector2
	speed    float64 // units per second
	issuedAt time.Time
	travel   time.Duration
}

func NewMotion(pos Vector2, speed float64, now func() time.Time) *Motion {
	if now == nil {
		now = time.Now
	}
	return &Motion{
		now:     now,
		start:   pos,
		current: pos,
		dest:    pos,
		speed:   speed,
	}
}

// plan records a new destination and returns the time to arrive.
func (m *Motion) plan(dest Vector2) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.updateLocked(now)
	m.start = m.current
	m.dest = dest
	m.issuedAt = now
	if m.speed <= 0 {
		m.dest = m.current
		m.travel = 0
		return 0
	}
	dist := m.start.Distance(dest)
	m.travel = time.Duration(dist / m.speed * float64(time.Second))
	return m.travel
}

// UpdatePosition brings the stored position up to date and returns it.
func (m *Motion) UpdatePosition() Vector2 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateLocked(m.now())
	return m.current
}

func (m *Motion) updateLocked(now time.Time) {
	if m.current == m.dest {
		return
	}
	elapsed := now.Sub(m.issuedAt)
	if m.travel <= 0 || elapsed >= m.travel {
		m.current = m.dest
		return
	}
	if elapsed <= 0 {
		m.current = m.start
		return
	}
	m.current = m.start.Lerp(m.dest, float64(elapsed)/float64(m.travel))
}

// Destination returns the planned destination (the position when idle).
func (m *Motion) Destination() Vector2 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dest
}

// Moving reports whether the destination has not been reached yet.
func (m *Motion) Moving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateLocked(m.now())
	return m.current != m.dest
}

// ETA is the remaining travel time.
func (m *Motion) ETA() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == m.dest {
		return 0
	}
	if left := m.travel - m.now().Sub(m.issuedAt); left > 0 {
		return left
	}
	return 0
}

// Teleport stops any flight and places the object at pos.
func (m *Motion) Teleport(pos Vector2) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start, m.current, m.dest = pos, pos, pos
	m.issuedAt = m.now()
	m.travel = 0
}

func (m *Motion) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// SetSpeed applies from the current position onward.
func (m *Motion) SetSpeed(speed float64) {
	m.mu.Lock()
	dest := m.dest
	m.speed = speed
	m.mu.Unlock()
	m.plan(dest)
}

// PositionInCircleRadius returns a random point exactly r away from the
// current position.
func (m *Motion) PositionInCircleRadius(r float64) Vector2 {
	pos := m.UpdatePosition()
	angle := rand.Float64() * 2 * math.Pi
	return Vector2{pos.X + math.Cos(angle)*r, pos.Y + math.Sin(angle)*r}
}
