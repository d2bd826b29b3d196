package stationing

import (
	"fmt"
	"iter"
	"math"
)

// rangeEpsilon absorbs floating error when deciding whether a further bin starts.
const rangeEpsilon = 1e-9

// Section is one analysis window over the grade and terrain profiles.
// XStart and XEnd are drawing units; BinWidth and StationInterval are in
// scaled units, the same space the profiles are integrated in.
type Section struct {
	ID              string
	XStart          float64
	XEnd            float64
	InitialStation  float64
	StationInterval float64
	BinWidth        float64
	HScale          float64
	VScale          float64

	// Missing names required parameters the request left out.
	Missing []string
}

type Bin struct {
	Index        int
	XStart       float64
	XEnd         float64
	StationStart float64
	StationEnd   float64
}

func (b Bin) Width() float64 {
	return b.XEnd - b.XStart
}

// Range is the scaled x-range the section covers.
func (s Section) Range() (float64, float64) {
	return s.XStart * s.HScale, s.XEnd * s.HScale
}

func (s Section) Validate() error {
	if len(s.Missing) > 0 {
		return &ConfigError{SectionID: s.ID, Field: s.Missing[0], Reason: "is required"}
	}

	positive := []struct {
		field string
		value float64
	}{
		{"h_scale", s.HScale},
		{"v_scale", s.VScale},
		{"bin_width", s.BinWidth},
		{"station_interval", s.StationInterval},
	}
	for _, p := range positive {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) || p.value <= 0 {
			return &ConfigError{SectionID: s.ID, Field: p.field, Reason: fmt.Sprintf("must be a positive number, got %v", p.value)}
		}
	}

	finite := []struct {
		field string
		value float64
	}{
		{"x_start", s.XStart},
		{"x_end", s.XEnd},
		{"initial_station", s.InitialStation},
	}
	for _, f := range finite {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &ConfigError{SectionID: s.ID, Field: f.field, Reason: "must be finite"}
		}
	}

	x0, x1 := s.Range()
	if x1-x0 <= rangeEpsilon {
		return &ConfigError{SectionID: s.ID, Field: "x_end", Reason: fmt.Sprintf("range [%v, %v] is empty or inverted", s.XStart, s.XEnd)}
	}
	return nil
}

// StationAt maps a scaled x to a station, kept as a single real number.
func (s Section) StationAt(x float64) float64 {
	x0, _ := s.Range()
	return s.InitialStation + (x-x0)/s.StationInterval
}

// Bins walks the section in BinWidth steps; the last bin is clipped to the
// section end. Each bin start is derived from its index, so long sections do
// not accumulate drift. The sequence can be ranged over any number of times.
func (s Section) Bins() iter.Seq[Bin] {
	return func(yield func(Bin) bool) {
		x0, x1 := s.Range()
		for i := 0; ; i++ {
			a := x0 + float64(i)*s.BinWidth
			if a >= x1-rangeEpsilon {
				return
			}
			b := math.Min(a+s.BinWidth, x1)

			bin := Bin{
				Index:        i,
				XStart:       a,
				XEnd:         b,
				StationStart: s.StationAt(a),
				StationEnd:   s.StationAt(b),
			}
			if !yield(bin) {
				return
			}
		}
	}
}

// BinCount reports how many bins Bins will yield.
func (s Section) BinCount() int {
	n := 0
	for range s.Bins() {
		n++
	}
	return n
}

// FormatStation renders a station as whole station plus offset in drawing
// units, e.g. 1000.75 with a 20 unit interval is "1000+15.00".
func FormatStation(station, interval float64) string {
	whole := math.Floor(station)
	offset := math.Round((station-whole)*interval*100) / 100
	if offset >= interval {
		whole++
		offset -= interval
	}
	return fmt.Sprintf("%.0f+%.2f", whole, offset)
}
