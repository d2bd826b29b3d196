package inference

import (
	"math"
	"sort"
)

type Scale struct {
	HScale      float64 `json:"h_scale"`
	VScale      float64 `json:"v_scale"`
	HConfidence float64 `json:"h_confidence"`
	VConfidence float64 `json:"v_confidence"`
}

// groupBy clusters items whose coordinate lies within tol of the previous
// member and keeps clusters of at least minSize.
func groupBy[T any](items []T, coord func(T) float64, tol float64, minSize int) [][]T {
	if len(items) == 0 {
		return nil
	}

	sorted := append([]T(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return coord(sorted[i]) < coord(sorted[j]) })

	var groups [][]T
	current := []T{sorted[0]}
	for _, it := range sorted[1:] {
		if coord(it)-coord(current[len(current)-1]) <= tol {
			current = append(current, it)
			continue
		}
		if len(current) >= minSize {
			groups = append(groups, current)
		}
		current = []T{it}
	}
	if len(current) >= minSize {
		groups = append(groups, current)
	}
	return groups
}

// VerticalScale reads elevation ruler columns: labels sharing an x whose
// values step with their y.
func VerticalScale(elevations []ElevationText) (scale, confidence float64) {
	if len(elevations) < 2 {
		return 1, 0.1
	}

	var ratios []float64
	for _, col := range groupBy(elevations, func(e ElevationText) float64 { return e.X }, 5, 3) {
		sort.SliceStable(col, func(i, j int) bool { return col[i].Y < col[j].Y })
		for i := 0; i+1 < len(col); i++ {
			dy := col[i+1].Y - col[i].Y
			dz := col[i+1].Elevation - col[i].Elevation
			if math.Abs(dy) <= 1 || math.Abs(dz) <= 0.1 {
				continue
			}
			if r := math.Abs(dz / dy); r >= 0.001 && r <= 100 {
				ratios = append(ratios, r)
			}
		}
	}
	return summarise(ratios)
}

// HorizontalScale reads station label rows. Labels stacked in a column are
// ruler ticks and are dropped first.
func HorizontalScale(stations []StationText, interval float64) (scale, confidence float64) {
	if len(stations) < 2 {
		return 1, 0.1
	}

	filtered := withoutColumns(stations)
	if len(filtered) < 2 {
		filtered = stations
	}

	ratio := func(a, b StationText) (float64, bool) {
		dx := b.X - a.X
		ds := b.Station - a.Station
		if dx <= 1 || ds <= 0 {
			return 0, false
		}
		r := float64(ds) * interval / dx
		return r, r >= 0.01 && r <= 1000
	}

	var ratios []float64
	for _, row := range groupBy(filtered, func(s StationText) float64 { return s.Y }, 15, 3) {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		for i := 0; i+1 < len(row); i++ {
			if r, ok := ratio(row[i], row[i+1]); ok {
				ratios = append(ratios, r)
			}
		}
	}

	if len(ratios) == 0 {
		all := append([]StationText(nil), stations...)
		sort.SliceStable(all, func(i, j int) bool { return all[i].X < all[j].X })
		for i := 0; i+1 < len(all); i++ {
			if r, ok := ratio(all[i], all[i+1]); ok {
				ratios = append(ratios, r)
			}
		}
	}
	return summarise(ratios)
}

func withoutColumns(stations []StationText) []StationText {
	inColumn := make(map[StationText]bool)
	for _, col := range groupBy(stations, func(s StationText) float64 { return s.X }, 5, 3) {
		for _, s := range col {
			inColumn[s] = true
		}
	}

	var out []StationText
	for _, s := range stations {
		if !inColumn[s] {
			out = append(out, s)
		}
	}
	return out
}

func summarise(ratios []float64) (float64, float64) {
	if len(ratios) == 0 {
		return 1, 0.1
	}
	ratios = modeFilter(ratios)
	med := median(ratios)
	return round(med, 6), round(consistency(ratios, med), 3)
}

func DetectScale(elevations []ElevationText, stations []StationText, interval float64) Scale {
	v, vc := VerticalScale(elevations)
	h, hc := HorizontalScale(stations, interval)
	return Scale{HScale: h, VScale: v, HConfidence: hc, VConfidence: vc}
}
