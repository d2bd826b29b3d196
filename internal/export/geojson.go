package export

import (
	"math"

	"github.com/ojparkinson/massbalance/internal/massbalance"
)

// GeoJSON Standard Types (RFC 7946 compliant). Profiles are drawn in a
// station/elevation plane rather than lon/lat.
type FeatureCollection struct {
	Type     string                 `json:"type"`
	Features []Feature              `json:"features"`
	Metadata map[string]interface{} `json:"metadata"`
}

type Feature struct {
	Type       string                 `json:"type"`
	Geometry   Geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type Geometry struct {
	Type        string     `json:"type"`
	Coordinates []Position `json:"coordinates"`
}

type Position []float64

type ConversionOptions struct {
	// MinPoints drops profiles with fewer samples. Zero keeps every line
	// with at least two points.
	MinPoints     int
	GreideColour  string
	TerrenoColour string
}

func (o ConversionOptions) withDefaults() ConversionOptions {
	if o.MinPoints < 2 {
		o.MinPoints = 2
	}
	if o.GreideColour == "" {
		o.GreideColour = "#FF0000"
	}
	if o.TerrenoColour == "" {
		o.TerrenoColour = "#8B5A2B"
	}
	return o
}

// ConvertToGeoJSON emits two LineStrings per section, grade then terrain,
// with [station, elevation] positions.
func ConvertToGeoJSON(resultID string, profiles []massbalance.SectionProfile, options ConversionOptions) *FeatureCollection {
	options = options.withDefaults()
	features := make([]Feature, 0, 2*len(profiles))

	for _, p := range profiles {
		if len(p.Points) < options.MinPoints {
			continue
		}

		greide := make([]Position, 0, len(p.Points))
		terreno := make([]Position, 0, len(p.Points))
		for _, pt := range p.Points {
			station := validateFloat64(pt.Station)
			greide = append(greide, Position{station, validateFloat64(pt.ElevationGreide)})
			terreno = append(terreno, Position{station, validateFloat64(pt.ElevationTerrain)})
		}

		features = append(features,
			lineFeature(p.SectionID, "greide", options.GreideColour, greide),
			lineFeature(p.SectionID, "terreno", options.TerrenoColour, terreno),
		)
	}

	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
		Metadata: map[string]interface{}{
			"result_id": resultID,
			"sections":  len(profiles),
		},
	}
}

func lineFeature(sectionID, role, colour string, coords []Position) Feature {
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "LineString",
			Coordinates: coords,
		},
		Properties: map[string]interface{}{
			"section_id": sectionID,
			"profile":    role,
			"color":      colour,
		},
	}
}

func validateFloat64(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0.0
	}
	return massbalance.Round(value)
}
