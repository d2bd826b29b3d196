package inference

import (
	"math"
	"regexp"
	"sort"

	"github.com/ojparkinson/massbalance/internal/drawing"
)

type Role string

const (
	RoleGreide  Role = "greide"
	RoleTerreno Role = "terreno"
)

var (
	greidePatterns  = compile("GREIDE", "GRADE", "PROJETO", "EIXO", "VT", "DESIGN")
	terrenoPatterns = compile("TERRENO", "TN", "NATURAL", "EXISTENTE", "GROUND", "PERFIL")
)

const maxCandidates = 5

func compile(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile("(?i)" + w)
	}
	return out
}

// LayerStats is everything the layer scorer looks at.
type LayerStats struct {
	Name        string
	EntityCount int
	Polylines   int
	TotalLength float64
	MaxLength   float64
}

type Candidate struct {
	Name        string  `json:"name"`
	Role        Role    `json:"role"`
	Confidence  float64 `json:"confidence"`
	EntityCount int     `json:"entity_count"`
	TotalLength float64 `json:"total_length"`
}

// Stats summarises each layer of d. Groups of three or more points count as
// polylines; their horizontal extent is their length.
func Stats(d *drawing.Drawing) []LayerStats {
	names := d.LayerNames()
	out := make([]LayerStats, 0, len(names))
	for _, name := range names {
		groups, _ := d.Layer(name)
		s := LayerStats{Name: name, EntityCount: len(groups)}
		for _, g := range groups {
			if len(g) < 3 {
				continue
			}
			s.Polylines++
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, p := range g {
				lo = math.Min(lo, p.X)
				hi = math.Max(hi, p.X)
			}
			s.TotalLength += hi - lo
			s.MaxLength = math.Max(s.MaxLength, hi-lo)
		}
		out = append(out, s)
	}
	return out
}

func patternScore(name string, patterns []*regexp.Regexp) float64 {
	matches := 0
	for _, p := range patterns {
		if p.MatchString(name) {
			matches++
		}
	}
	return math.Min(1, float64(matches)/2)
}

// geometricScore prefers layers holding a few long polylines.
func geometricScore(s LayerStats) float64 {
	if s.EntityCount == 0 {
		return 0
	}
	if s.Polylines == 0 {
		return 0.1
	}

	count := 1.0
	if s.Polylines > 3 {
		count = math.Max(0, 1-float64(s.Polylines-3)*0.1)
	}
	length := math.Min(1, s.MaxLength/500)
	return 0.5*count + 0.5*length
}

// ScoreLayer returns the confidence that the layer plays role, and false when
// it is not a candidate at all.
func ScoreLayer(s LayerStats, role Role) (float64, bool) {
	patterns := greidePatterns
	if role == RoleTerreno {
		patterns = terrenoPatterns
	}

	pat := patternScore(s.Name, patterns)
	geo := geometricScore(s)
	if pat <= 0 && geo <= 0.3 {
		return 0, false
	}

	conf := 0.4*pat + 0.6*geo
	if conf <= 0.05 {
		return 0, false
	}
	return conf, true
}

// DetectLayers ranks the candidates for both roles, best first, at most five each.
func DetectLayers(stats []LayerStats) (greide, terreno []Candidate) {
	rank := func(role Role) []Candidate {
		var out []Candidate
		for _, s := range stats {
			conf, ok := ScoreLayer(s, role)
			if !ok {
				continue
			}
			out = append(out, Candidate{
				Name:        s.Name,
				Role:        role,
				Confidence:  round(conf, 3),
				EntityCount: s.EntityCount,
				TotalLength: round(s.TotalLength, 2),
			})
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
		if len(out) > maxCandidates {
			out = out[:maxCandidates]
		}
		return out
	}
	return rank(RoleGreide), rank(RoleTerreno)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
