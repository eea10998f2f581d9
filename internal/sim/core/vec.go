package core

import "math"

// Vec2 is a 2D position in world units. The tactical map is a flat plane;
// all perception and patrol geometry works in these coordinates.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }

// Normalize returns the unit vector, or zero if v is (near) zero.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l < 1e-9 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// StepToward moves from at toward to by at most speed units, without
// overshooting. Returns the new position and whether the target was reached.
func StepToward(at, to Vec2, speed float64) (Vec2, bool) {
	d := to.Sub(at)
	l := d.Len()
	if l <= speed {
		return to, true
	}
	return at.Add(d.Scale(speed / l)), false
}
