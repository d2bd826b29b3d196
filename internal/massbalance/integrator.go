package massbalance

import (
	"math"
	"sort"

	"github.com/ojparkinson/massbalance/internal/stationing"
)

// DefaultEpsilon is the absolute elevation difference treated as an exact touch.
const DefaultEpsilon = 1e-9

// Integrator computes the fill and cut areas between grade and terrain in a bin.
type Integrator struct {
	Epsilon float64
}

func NewIntegrator(epsilon float64) Integrator {
	if epsilon < 0 || math.IsNaN(epsilon) {
		epsilon = DefaultEpsilon
	}
	return Integrator{Epsilon: epsilon}
}

// Integrate returns areaVT (grade above terrain, fill) and areaPF (terrain
// above grade, cut) for the bin. Both are non-negative. Stretches where only
// one profile exists are skipped; a bin where either profile is entirely
// absent fails with a CoverageError.
func (in Integrator) Integrate(grade, terrain *Profile, bin stationing.Bin) (areaVT, areaPF float64, err error) {
	x0, x1 := bin.XStart, bin.XEnd
	xs := breakpoints(x0, x1, grade.Vertices(x0, x1), terrain.Vertices(x0, x1))

	var gradeCovered, terrainCovered bool
	for i := 1; i < len(xs); i++ {
		xa, xb := xs[i-1], xs[i]

		ga, okGA := grade.RightOf(xa)
		gb, okGB := grade.LeftOf(xb)
		ta, okTA := terrain.RightOf(xa)
		tb, okTB := terrain.LeftOf(xb)

		gradeHere := okGA && okGB
		terrainHere := okTA && okTB
		gradeCovered = gradeCovered || gradeHere
		terrainCovered = terrainCovered || terrainHere
		if !gradeHere || !terrainHere {
			continue
		}

		vt, pf := in.trapezoid(xa, xb, ga-ta, gb-tb)
		areaVT += vt
		areaPF += pf
	}

	if !gradeCovered || !terrainCovered {
		var layers []string
		if !gradeCovered {
			layers = append(layers, grade.Layer)
		}
		if !terrainCovered {
			layers = append(layers, terrain.Layer)
		}
		return 0, 0, &CoverageError{BinIndex: bin.Index, XStart: x0, XEnd: x1, Layers: layers}
	}
	return areaVT, areaPF, nil
}

// trapezoid splits the interval at the crossing when da and db have strictly
// opposite signs; otherwise the whole trapezoid carries one sign.
func (in Integrator) trapezoid(xa, xb, da, db float64) (vt, pf float64) {
	if math.Abs(da) <= in.Epsilon {
		da = 0
	}
	if math.Abs(db) <= in.Epsilon {
		db = 0
	}

	if (da > 0 && db < 0) || (da < 0 && db > 0) {
		tau := da / (da - db)
		xm := xa + tau*(xb-xa)
		vt1, pf1 := signed((xm - xa) * da / 2)
		vt2, pf2 := signed((xb - xm) * db / 2)
		return vt1 + vt2, pf1 + pf2
	}
	return signed((xb - xa) * (da + db) / 2)
}

func signed(area float64) (vt, pf float64) {
	switch {
	case area > 0:
		return area, 0
	case area < 0:
		return 0, -area
	default:
		return 0, 0
	}
}

func breakpoints(x0, x1 float64, sets ...[]float64) []float64 {
	xs := []float64{x0, x1}
	for _, set := range sets {
		xs = append(xs, set...)
	}
	sort.Float64s(xs)
	return uniqueSorted(xs)
}
