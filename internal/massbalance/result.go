package massbalance

import (
	"encoding/json"
	"errors"
	"math"

	"github.com/ojparkinson/massbalance/internal/stationing"
)

// VolumeDivisor converts integrated areas into the reported cut and fill figures.
const VolumeDivisor = 10.0

type BinResult struct {
	SectionID    string
	Index        int
	XStart       float64
	XEnd         float64
	StationStart float64
	StationEnd   float64
	DistM        float64
	DistStations float64
	AreaVT       float64
	AreaPF       float64
	AreaDiff     float64
	Cut          float64
	Fill         float64
	// Err is a *CoverageError when the bin could not be integrated. The area
	// fields are then meaningless and are emitted as null.
	Err error
}

func NewBinResult(section stationing.Section, bin stationing.Bin, areaVT, areaPF float64, err error) BinResult {
	r := BinResult{
		SectionID:    section.ID,
		Index:        bin.Index,
		XStart:       bin.XStart,
		XEnd:         bin.XEnd,
		StationStart: bin.StationStart,
		StationEnd:   bin.StationEnd,
		DistM:        bin.Width(),
		DistStations: bin.Width() / section.StationInterval,
		Err:          err,
	}
	if err != nil {
		return r
	}

	r.AreaVT = areaVT
	r.AreaPF = areaPF
	r.AreaDiff = areaVT - areaPF
	r.Cut = areaPF / VolumeDivisor
	r.Fill = areaVT / VolumeDivisor
	return r
}

func (r BinResult) OK() bool {
	return r.Err == nil
}

type binResultJSON struct {
	SectionID    string   `json:"section_id"`
	Index        int      `json:"index"`
	XStart       float64  `json:"x_start"`
	XEnd         float64  `json:"x_end"`
	StationStart float64  `json:"station_start"`
	StationEnd   float64  `json:"station_end"`
	DistM        float64  `json:"dist_m"`
	DistStations float64  `json:"dist_stations"`
	AreaVT       *float64 `json:"area_vt"`
	AreaPF       *float64 `json:"area_pf"`
	AreaDiff     *float64 `json:"area_diff"`
	Cut          *float64 `json:"cut"`
	Fill         *float64 `json:"fill"`
	Error        string   `json:"error,omitempty"`
}

func (r BinResult) MarshalJSON() ([]byte, error) {
	out := binResultJSON{
		SectionID:    r.SectionID,
		Index:        r.Index,
		XStart:       Round(r.XStart),
		XEnd:         Round(r.XEnd),
		StationStart: Round(r.StationStart),
		StationEnd:   Round(r.StationEnd),
		DistM:        Round(r.DistM),
		DistStations: Round(r.DistStations),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
		return json.Marshal(out)
	}

	out.AreaVT = ptr(Round(r.AreaVT))
	out.AreaPF = ptr(Round(r.AreaPF))
	out.AreaDiff = ptr(Round(r.AreaDiff))
	out.Cut = ptr(Round(r.Cut))
	out.Fill = ptr(Round(r.Fill))
	return json.Marshal(out)
}

// UnmarshalJSON restores a stored bin. A recorded error comes back as a
// plain error carrying the original message.
func (r *BinResult) UnmarshalJSON(data []byte) error {
	var in binResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*r = BinResult{
		SectionID:    in.SectionID,
		Index:        in.Index,
		XStart:       in.XStart,
		XEnd:         in.XEnd,
		StationStart: in.StationStart,
		StationEnd:   in.StationEnd,
		DistM:        in.DistM,
		DistStations: in.DistStations,
	}
	if in.Error != "" {
		r.Err = errors.New(in.Error)
		return nil
	}
	r.AreaVT = deref(in.AreaVT)
	r.AreaPF = deref(in.AreaPF)
	r.AreaDiff = deref(in.AreaDiff)
	r.Cut = deref(in.Cut)
	r.Fill = deref(in.Fill)
	return nil
}

// Round keeps four decimal places, the precision of every reported figure.
func Round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func ptr(v float64) *float64 { return &v }

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

type ProfilePoint struct {
	X                float64 `json:"-"`
	Station          float64 `json:"station"`
	ElevationGreide  float64 `json:"elevation_greide"`
	ElevationTerrain float64 `json:"elevation_terrain"`
}

// SampleProfiles pairs grade and terrain elevations at every bin boundary and
// every vertex inside the section. Abscissas where either profile is missing
// are left out.
func SampleProfiles(grade, terrain *Profile, section stationing.Section) []ProfilePoint {
	x0, x1 := section.Range()

	xs := []float64{x0, x1}
	for bin := range section.Bins() {
		xs = append(xs, bin.XStart, bin.XEnd)
	}
	xs = breakpoints(x0, x1, xs, grade.Vertices(x0, x1), terrain.Vertices(x0, x1))

	points := make([]ProfilePoint, 0, len(xs))
	for _, x := range xs {
		g, okG := grade.At(x)
		t, okT := terrain.At(x)
		if !okG || !okT {
			continue
		}
		points = append(points, ProfilePoint{
			X:                x,
			Station:          section.StationAt(x),
			ElevationGreide:  g,
			ElevationTerrain: t,
		})
	}
	return points
}

// SectionProfile is the sampled grade and terrain line of one section.
type SectionProfile struct {
	SectionID string         `json:"section_id"`
	Points    []ProfilePoint `json:"points"`
}
