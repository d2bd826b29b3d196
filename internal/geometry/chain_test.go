package geometry

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func pts(xy ...float64) PointGroup {
	g := make(PointGroup, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		g = append(g, Point{X: xy[i], Y: xy[i+1]})
	}
	return g
}

func TestChainBuilderBuild(t *testing.T) {
	testCases := []struct {
		name   string
		groups []PointGroup
		h, v   float64
		want   []Chain
	}{
		{
			name:   "reversed group is normalised",
			groups: []PointGroup{pts(10, 1, 0, 0)},
			h:      1, v: 1,
			want: []Chain{Chain(pts(0, 0, 10, 1))},
		},
		{
			name:   "adjacent groups merge in x order",
			groups: []PointGroup{pts(20, 2, 10, 1), pts(0, 0, 10, 1)},
			h:      1, v: 1,
			want: []Chain{Chain(pts(0, 0, 10, 1, 20, 2))},
		},
		{
			name:   "scale applied before merging",
			groups: []PointGroup{pts(0, 10, 5, 20), pts(5, 20, 10, 30)},
			h:      2, v: 0.5,
			want: []Chain{Chain(pts(0, 5, 10, 10, 20, 15))},
		},
		{
			name:   "gap wider than tolerance keeps chains apart",
			groups: []PointGroup{pts(0, 0, 10, 0), pts(10.5, 0, 20, 0)},
			h:      1, v: 1,
			want: []Chain{Chain(pts(0, 0, 10, 0)), Chain(pts(10.5, 0, 20, 0))},
		},
		{
			name:   "overlapping strands far apart in y are not spliced",
			groups: []PointGroup{pts(0, 0, 10, 0), pts(5, 50, 15, 50)},
			h:      1, v: 1,
			want: []Chain{Chain(pts(0, 0, 10, 0)), Chain(pts(5, 50, 15, 50))},
		},
		{
			name:   "strand interrupted by another still merges",
			groups: []PointGroup{pts(0, 0, 50, 0), pts(50, 0, 100, 0), pts(20, 50, 80, 50)},
			h:      1, v: 1,
			want: []Chain{Chain(pts(0, 0, 50, 0, 100, 0)), Chain(pts(20, 50, 80, 50))},
		},
		{
			name:   "nearest open chain takes the group",
			groups: []PointGroup{pts(0, 0, 10, 0), pts(0, 0.01, 10, 0.0005), pts(10, 0.0004, 20, 5)},
			h:      1, v: 1,
			want: []Chain{Chain(pts(0, 0, 10, 0)), Chain(pts(0, 0.01, 10, 0.0005, 10, 0.0004, 20, 5))},
		},
		{
			name:   "consecutive duplicates collapse",
			groups: []PointGroup{pts(0, 0, 0, 0, 5, 1, 5, 1)},
			h:      1, v: 1,
			want: []Chain{Chain(pts(0, 0, 5, 1))},
		},
	}

	builder := NewChainBuilder(DefaultMergeTolerance)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := builder.Build("GREIDE", tc.groups, tc.h, tc.v)
			if err != nil {
				t.Fatalf("Build returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Build() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestChainBuilderWithinTolerance(t *testing.T) {
	builder := NewChainBuilder(0.01)
	got, err := builder.Build("TERRENO", []PointGroup{pts(0, 0, 10, 0), pts(10.005, 0.004, 20, 1)}, 1, 1)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(got) != 1 || len(got[0]) != 4 {
		t.Fatalf("expected a single merged chain of 4 points, got %v", got)
	}
}

func TestChainBuilderInputNotMutated(t *testing.T) {
	group := pts(10, 1, 0, 0)
	original := append(PointGroup(nil), group...)

	if _, err := NewChainBuilder(DefaultMergeTolerance).Build("GREIDE", []PointGroup{group}, 3, 3); err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if !reflect.DeepEqual(group, original) {
		t.Fatalf("input group changed: %v", group)
	}
}

func TestChainBuilderErrors(t *testing.T) {
	testCases := []struct {
		name   string
		groups []PointGroup
	}{
		{name: "no groups", groups: nil},
		{name: "only empty groups", groups: []PointGroup{{}, {}}},
		{name: "nan coordinate", groups: []PointGroup{pts(0, math.NaN(), 1, 1)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewChainBuilder(DefaultMergeTolerance).Build("TERRENO", tc.groups, 1, 1)
			var geomErr *GeometryError
			if !errors.As(err, &geomErr) {
				t.Fatalf("expected GeometryError, got %v", err)
			}
			if geomErr.Layer != "TERRENO" {
				t.Fatalf("expected layer TERRENO, got %q", geomErr.Layer)
			}
		})
	}
}

func TestChainBuilderIdempotent(t *testing.T) {
	builder := NewChainBuilder(DefaultMergeTolerance)
	groups := []PointGroup{
		pts(40, 3, 30, 2),
		pts(0, 0, 10, 1),
		pts(10, 1, 20, 1.5, 30, 2),
		pts(100, 5, 120, 6),
	}

	first, err := builder.Build("GREIDE", groups, 1, 1)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	for _, chain := range first {
		again, err := builder.Build("GREIDE", []PointGroup{PointGroup(chain)}, 1, 1)
		if err != nil {
			t.Fatalf("rebuild returned error: %v", err)
		}
		if len(again) != 1 || !reflect.DeepEqual(again[0], chain) {
			t.Fatalf("rebuild of %v gave %v", chain, again)
		}
	}
}

func TestChainBuilderOrderInvariant(t *testing.T) {
	builder := NewChainBuilder(DefaultMergeTolerance)
	groups := []PointGroup{
		pts(0, 0, 10, 1),
		pts(30, 2, 10, 1, 20, 1.5),
		pts(30, 2, 40, 3),
		pts(100, 5, 120, 6),
		pts(60, 9, 70, 9),
	}

	want, err := builder.Build("GREIDE", groups, 1, 1)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]PointGroup(nil), groups...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := builder.Build("GREIDE", shuffled, 1, 1)
		if err != nil {
			t.Fatalf("Build returned error: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("shuffle %d: got %v, want %v", i, got, want)
		}
	}
}

func TestChainBounds(t *testing.T) {
	b := Chain(pts(0, 5, 10, -1, 20, 3)).Bounds()
	if b.LLx != 0 || b.URx != 20 || b.LLy != -1 || b.URy != 5 {
		t.Fatalf("unexpected bounds %+v", b)
	}
}
