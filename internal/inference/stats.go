package inference

import (
	"math"
	"sort"
)

func median(vs []float64) float64 {
	s := append([]float64(nil), vs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// stdev is the sample standard deviation; callers pass at least two values.
func stdev(vs []float64) float64 {
	var mean float64
	for _, v := range vs {
		mean += v
	}
	mean /= float64(len(vs))

	var ss float64
	for _, v := range vs {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(vs)-1))
}

// modeFilter keeps the ratios within half of the most common value, rounded
// to four places. Ties go to the value seen first.
func modeFilter(ratios []float64) []float64 {
	if len(ratios) == 0 {
		return ratios
	}

	counts := make(map[float64]int)
	mode, best := 0.0, 0
	for _, r := range ratios {
		k := round(r, 4)
		counts[k]++
		if counts[k] > best {
			mode, best = k, counts[k]
		}
	}

	var out []float64
	for _, r := range ratios {
		if r >= 0.5*mode && r <= 1.5*mode {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return ratios
	}
	return out
}

func consistency(ratios []float64, med float64) float64 {
	switch {
	case len(ratios) >= 3:
		return math.Max(0.2, math.Min(1, 1-stdev(ratios)/med))
	case len(ratios) > 0:
		return 0.3
	default:
		return 0.1
	}
}
