package inference

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ojparkinson/massbalance/internal/drawing"
)

var (
	utmPattern     = regexp.MustCompile(`^[EN]\s*=\s*\d{6,}`)
	stationPattern = regexp.MustCompile(`^\d{3,4}$`)
)

type StationText struct {
	drawing.Text
	Station int
}

type ElevationText struct {
	drawing.Text
	Elevation float64
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Irrelevant reports UTM coordinates and numbers too large to be a station
// or an elevation.
func Irrelevant(s string) bool {
	if utmPattern.MatchString(s) {
		return true
	}
	if v, ok := parseNumber(s); ok && math.Abs(v) > 100_000 {
		return true
	}
	return false
}

func Relevant(texts []drawing.Text) []drawing.Text {
	var out []drawing.Text
	for _, t := range texts {
		if !Irrelevant(t.Value) {
			out = append(out, t)
		}
	}
	return out
}

// Stations picks texts that read as whole station numbers between 100 and 9999.
func Stations(texts []drawing.Text) []StationText {
	var out []StationText
	for _, t := range texts {
		s := strings.TrimSpace(t.Value)
		if !stationPattern.MatchString(s) {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil || v < 100 || v > 9999 {
			continue
		}
		out = append(out, StationText{Text: t, Station: v})
	}
	return out
}

func Elevations(texts []drawing.Text) []ElevationText {
	var out []ElevationText
	for _, t := range texts {
		v, ok := parseNumber(t.Value)
		if !ok || v < 10 || v > 9999 || Irrelevant(t.Value) {
			continue
		}
		out = append(out, ElevationText{Text: t, Elevation: v})
	}
	return out
}
