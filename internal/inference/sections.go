package inference

import (
	"math"
	"sort"

	"github.com/ojparkinson/massbalance/internal/geometry"
)

const (
	sectionGapX      = 50.0
	sectionJumpY     = 20.0
	stationTolerance = 100.0
	intervalMargin   = 50.0

	defaultStation  = 1000.0
	defaultInterval = 20.0
	defaultBinWidth = 100.0
)

// Suggestion is a detected section, ready to be confirmed by the user and
// sent back as part of a calculation request.
type Suggestion struct {
	ID              int     `json:"id"`
	XStart          float64 `json:"x_start"`
	XEnd            float64 `json:"x_end"`
	InitialStation  float64 `json:"initial_station"`
	StationInterval float64 `json:"station_interval"`
	BinWidth        float64 `json:"bin_width"`
	HScale          float64 `json:"h_scale"`
	VScale          float64 `json:"v_scale"`
	Confidence      float64 `json:"confidence"`
}

type span struct {
	x0, x1 float64
	y0, y1 float64 // y at the leftmost and rightmost points
}

func spanOf(c geometry.Chain) span {
	s := span{x0: math.Inf(1), x1: math.Inf(-1)}
	for _, p := range c {
		if p.X < s.x0 {
			s.x0, s.y0 = p.X, p.Y
		}
		if p.X > s.x1 {
			s.x1, s.y1 = p.X, p.Y
		}
	}
	return s
}

// sectionRanges splits the grade chains wherever they leave a horizontal gap
// or jump vertically at a shared boundary.
func sectionRanges(chains []geometry.Chain) [][2]float64 {
	if len(chains) == 0 {
		return nil
	}

	spans := make([]span, len(chains))
	for i, c := range chains {
		spans[i] = spanOf(c)
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].x0 < spans[j].x0 })

	ranges := [][2]float64{{spans[0].x0, spans[0].x1}}
	prevY := spans[0].y1
	for _, s := range spans[1:] {
		last := &ranges[len(ranges)-1]
		gap := s.x0 - last[1]
		switch {
		case gap > sectionGapX:
			ranges = append(ranges, [2]float64{s.x0, s.x1})
		case math.Abs(gap) <= sectionGapX && math.Abs(s.y0-prevY) > sectionJumpY:
			ranges = append(ranges, [2]float64{s.x0, s.x1})
		default:
			last[1] = math.Max(last[1], s.x1)
		}
		prevY = s.y1
	}
	return ranges
}

// initialStation picks the station label nearest to x0. At a section break
// two labels share that x; the larger one starts the new section.
func initialStation(stations []StationText, x0 float64) (float64, float64) {
	var near []StationText
	for _, s := range stations {
		if math.Abs(s.X-x0) <= stationTolerance {
			near = append(near, s)
		}
	}
	if len(near) == 0 {
		return defaultStation, 0.1
	}

	sort.SliceStable(near, func(i, j int) bool { return math.Abs(near[i].X-x0) < math.Abs(near[j].X-x0) })
	closest := math.Abs(near[0].X - x0)

	best := near[0]
	found := false
	for _, s := range near {
		if math.Abs(math.Abs(s.X-x0)-closest) >= 1 || s.X < x0-1 {
			continue
		}
		if !found || s.Station > best.Station {
			best, found = s, true
		}
	}

	conf := math.Max(0.2, 1-math.Abs(best.X-x0)/stationTolerance)
	return float64(best.Station), round(conf, 3)
}

// stationInterval is the median drawing distance per station between
// consecutive labels inside the section.
func stationInterval(stations []StationText, x0, x1 float64) (float64, float64) {
	var in []StationText
	for _, s := range stations {
		if s.X >= x0-intervalMargin && s.X <= x1+intervalMargin {
			in = append(in, s)
		}
	}
	if len(in) < 2 {
		return defaultInterval, 0.1
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].X < in[j].X })

	var intervals []float64
	for i := 0; i+1 < len(in); i++ {
		dx := in[i+1].X - in[i].X
		ds := in[i+1].Station - in[i].Station
		if ds == 0 || dx <= 0 {
			continue
		}
		if v := dx / float64(ds); v >= 1 && v <= 100 {
			intervals = append(intervals, v)
		}
	}
	if len(intervals) == 0 {
		return defaultInterval, 0.1
	}

	med := median(intervals)
	conf := 0.4
	if len(intervals) >= 3 {
		conf = math.Max(0.1, math.Min(1, 1-stdev(intervals)/med))
	}
	return round(med, 2), round(conf, 3)
}

// DetectSections suggests one section per continuous stretch of the grade.
func DetectSections(chains []geometry.Chain, stations []StationText) []Suggestion {
	var out []Suggestion
	for i, r := range sectionRanges(chains) {
		st, stConf := initialStation(stations, r[0])
		iv, ivConf := stationInterval(stations, r[0], r[1])
		out = append(out, Suggestion{
			ID:              i + 1,
			XStart:          round(r[0], 2),
			XEnd:            round(r[1], 2),
			InitialStation:  st,
			StationInterval: iv,
			BinWidth:        defaultBinWidth,
			HScale:          1,
			VScale:          1,
			Confidence:      round((stConf+ivConf)/2, 3),
		})
	}
	return out
}
