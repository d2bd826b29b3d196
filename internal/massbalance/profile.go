package massbalance

import (
	"math"
	"sort"

	"github.com/ojparkinson/massbalance/internal/geometry"
)

// Profile is an immutable, x-indexed view over one layer's segments.
// It is safe for concurrent use once built.
type Profile struct {
	Layer    string
	segments []geometry.Segment
	// reach[i] is the largest end x among segments[0..i].
	reach    []float64
	vertices []float64
}

func NewProfile(layer string, segments []geometry.Segment) *Profile {
	segs := make([]geometry.Segment, 0, len(segments))
	for _, s := range segments {
		if s.P0.X > s.P1.X {
			s.P0, s.P1 = s.P1, s.P0
		}
		// Vertical steps carry no area; the neighbouring segments keep both levels.
		if s.Width() <= 0 {
			continue
		}
		segs = append(segs, s)
	}

	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].P0.X != segs[j].P0.X {
			return segs[i].P0.X < segs[j].P0.X
		}
		return segs[i].P1.X < segs[j].P1.X
	})

	reach := make([]float64, len(segs))
	xs := make([]float64, 0, 2*len(segs))
	for i, s := range segs {
		reach[i] = s.P1.X
		if i > 0 {
			reach[i] = math.Max(reach[i], reach[i-1])
		}
		xs = append(xs, s.P0.X, s.P1.X)
	}
	sort.Float64s(xs)

	return &Profile{
		Layer:    layer,
		segments: segs,
		reach:    reach,
		vertices: uniqueSorted(xs),
	}
}

func (p *Profile) Len() int {
	return len(p.segments)
}

// Extent returns the smallest and largest x covered by the profile.
func (p *Profile) Extent() (float64, float64, bool) {
	if len(p.vertices) == 0 {
		return 0, 0, false
	}
	return p.vertices[0], p.vertices[len(p.vertices)-1], true
}

// Segments returns a copy of the indexed segments in x order.
func (p *Profile) Segments() []geometry.Segment {
	return append([]geometry.Segment(nil), p.segments...)
}

// Vertices returns the distinct vertex abscissas inside the open interval (a, b).
func (p *Profile) Vertices(a, b float64) []float64 {
	i := sort.Search(len(p.vertices), func(i int) bool { return p.vertices[i] > a })
	var out []float64
	for ; i < len(p.vertices) && p.vertices[i] < b; i++ {
		out = append(out, p.vertices[i])
	}
	return out
}

// RightOf returns the elevation just to the right of x, taken from the first
// segment with start <= x < end.
func (p *Profile) RightOf(x float64) (float64, bool) {
	first := sort.Search(len(p.reach), func(i int) bool { return p.reach[i] > x })
	for i := first; i < len(p.segments) && p.segments[i].P0.X <= x; i++ {
		if p.segments[i].P1.X > x {
			return p.segments[i].YAt(x), true
		}
	}
	return 0, false
}

// LeftOf returns the elevation just to the left of x, taken from the first
// segment with start < x <= end.
func (p *Profile) LeftOf(x float64) (float64, bool) {
	first := sort.Search(len(p.reach), func(i int) bool { return p.reach[i] >= x })
	for i := first; i < len(p.segments) && p.segments[i].P0.X < x; i++ {
		if p.segments[i].P1.X >= x {
			return p.segments[i].YAt(x), true
		}
	}
	return 0, false
}

// At samples the profile at x, preferring the segment that continues to the right.
func (p *Profile) At(x float64) (float64, bool) {
	if y, ok := p.RightOf(x); ok {
		return y, true
	}
	return p.LeftOf(x)
}

func uniqueSorted(xs []float64) []float64 {
	if len(xs) == 0 {
		return xs
	}
	out := xs[:1]
	for _, x := range xs[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}
