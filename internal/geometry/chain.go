package geometry

import (
	"math"
	"sort"
)

const (
	DefaultMergeTolerance   = 1e-3
	DefaultDuplicateEpsilon = 1e-9
)

// ChainBuilder turns unordered point groups into x-monotone chains.
type ChainBuilder struct {
	// MergeTolerance is the largest x and y distance between the end of the
	// running chain and the start of the next group for the two to be joined.
	MergeTolerance float64
	// DuplicateEpsilon collapses consecutive points closer than this in both axes.
	DuplicateEpsilon float64
}

func NewChainBuilder(mergeTolerance float64) ChainBuilder {
	if mergeTolerance < 0 || math.IsNaN(mergeTolerance) {
		mergeTolerance = DefaultMergeTolerance
	}
	return ChainBuilder{
		MergeTolerance:   mergeTolerance,
		DuplicateEpsilon: DefaultDuplicateEpsilon,
	}
}

// Build scales every point, orders each group by x and greedily merges
// adjacent groups into chains. The input groups are never modified.
func (b ChainBuilder) Build(layer string, groups []PointGroup, hScale, vScale float64) ([]Chain, error) {
	normalised := make([]Chain, 0, len(groups))
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}

		pts := make(Chain, 0, len(group))
		for _, p := range group {
			scaled := Point{X: p.X * hScale, Y: p.Y * vScale}
			if !finite(scaled) {
				return nil, &GeometryError{Layer: layer, Reason: "point with non-finite coordinate"}
			}
			pts = append(pts, scaled)
		}

		sort.SliceStable(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
		normalised = append(normalised, b.dedupe(pts))
	}

	if len(normalised) == 0 {
		return nil, &GeometryError{Layer: layer, Reason: "layer has no usable points"}
	}

	sort.SliceStable(normalised, func(i, j int) bool { return groupLess(normalised[i], normalised[j]) })

	// Every chain stays open: a strand interrupted by another one starting
	// in between still joins up with its own continuation.
	chains := make([]Chain, 0, len(normalised))
	for _, next := range normalised {
		if i := b.nearest(chains, next.First()); i >= 0 {
			chains[i] = b.extend(chains[i], next)
			continue
		}
		chains = append(chains, append(Chain(nil), next...))
	}

	return chains, nil
}

// nearest returns the chain whose last point is closest to first and within
// tolerance, the earliest one on ties, or -1.
func (b ChainBuilder) nearest(chains []Chain, first Point) int {
	best, bestDist := -1, math.Inf(1)
	for i, c := range chains {
		last := c.Last()
		if !b.adjacent(last, first) {
			continue
		}
		if d := math.Hypot(first.X-last.X, first.Y-last.Y); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func (b ChainBuilder) adjacent(last, first Point) bool {
	return math.Abs(first.X-last.X) <= b.MergeTolerance && math.Abs(first.Y-last.Y) <= b.MergeTolerance
}

// extend appends group to chain, skipping duplicates and any point that
// would make x decrease.
func (b ChainBuilder) extend(chain, group Chain) Chain {
	for _, p := range group {
		last := chain.Last()
		if b.same(last, p) || p.X < last.X {
			continue
		}
		chain = append(chain, p)
	}
	return chain
}

func (b ChainBuilder) dedupe(pts Chain) Chain {
	out := pts[:1]
	for _, p := range pts[1:] {
		if b.same(out[len(out)-1], p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (b ChainBuilder) same(p, q Point) bool {
	return math.Abs(p.X-q.X) <= b.DuplicateEpsilon && math.Abs(p.Y-q.Y) <= b.DuplicateEpsilon
}

// groupLess orders groups by minimum x. Ties fall back to the remaining
// endpoint coordinates so the result only depends on group content.
func groupLess(a, b Chain) bool {
	switch {
	case a.First().X != b.First().X:
		return a.First().X < b.First().X
	case a.First().Y != b.First().Y:
		return a.First().Y < b.First().Y
	case a.Last().X != b.Last().X:
		return a.Last().X < b.Last().X
	case a.Last().Y != b.Last().Y:
		return a.Last().Y < b.Last().Y
	default:
		return len(a) < len(b)
	}
}
