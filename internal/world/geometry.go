package world

import "math"

// Vector2 is a position on a map in world units.
type Vector2 struct {
	X, Y float64
}

func (v Vector2) Add(o Vector2) Vector2 { return Vector2{v.X + o.X, v.Y + o.Y} }
func (v Vector2) Sub(o Vector2) Vector2 { return Vector2{v.X - o.X, v.Y - o.Y} }

func (v Vector2) Distance(o Vector2) float64 {
	return math.Hypot(v.X-o.X, v.Y-o.Y)
}

// InRange compares squared distance, no sqrt.
func (v Vector2) InRange(o Vector2, r float64) bool {
	dx, dy := v.X-o.X, v.Y-o.Y
	return dx*dx+dy*dy <= r*r
}

// Lerp returns the point a fraction t of the way from v to o.
func (v Vector2) Lerp(o Vector2, t float64) Vector2 {
	return Vector2{v.X + (o.X-v.X)*t, v.Y + (o.Y-v.Y)*t}
}

// Clamp keeps v inside [min, max] on both axes.
func (v Vector2) Clamp(min, max Vector2) Vector2 {
	return Vector2{
		X: math.Max(min.X, math.Min(max.X, v.X)),
		Y: math.Max(min.Y, math.Min(max.Y, v.Y)),
	}
}
