package geometry

import (
	"math"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// Point is a drawing coordinate. x runs along the alignment, y is elevation.
type Point = vec.Vec2

// PointGroup holds the points of one exploded CAD entity in arbitrary order.
type PointGroup []Point

// Chain is an x-ordered run of points with consecutive duplicates removed.
type Chain []Point

// Segment is one straight piece of a chain, P0.X <= P1.X.
type Segment struct {
	P0 Point
	P1 Point
}

// Length is the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return s.P1.Sub(s.P0).Length()
}

// Width is the horizontal extent of the segment.
func (s Segment) Width() float64 {
	return s.P1.X - s.P0.X
}

// YAt interpolates the segment at x. Callers keep x within [P0.X, P1.X].
func (s Segment) YAt(x float64) float64 {
	w := s.Width()
	if w == 0 {
		return s.P0.Y
	}
	t := (x - s.P0.X) / w
	return s.P0.Y + t*(s.P1.Y-s.P0.Y)
}

func (c Chain) First() Point { return c[0] }

func (c Chain) Last() Point { return c[len(c)-1] }

// Length is the polyline length of the chain.
func (c Chain) Length() float64 {
	total := 0.0
	for i := 1; i < len(c); i++ {
		total += c[i].Sub(c[i-1]).Length()
	}
	return total
}

// Bounds returns the bounding box of the chain. An empty chain has a zero box.
func (c Chain) Bounds() rect.Rect {
	if len(c) == 0 {
		return rect.Rect{}
	}
	r := rect.Rect{LLx: math.Inf(1), LLy: math.Inf(1), URx: math.Inf(-1), URy: math.Inf(-1)}
	for _, p := range c {
		r.LLx = math.Min(r.LLx, p.X)
		r.LLy = math.Min(r.LLy, p.Y)
		r.URx = math.Max(r.URx, p.X)
		r.URy = math.Max(r.URy, p.Y)
	}
	return r
}

func finite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
