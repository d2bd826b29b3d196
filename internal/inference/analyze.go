package inference

import (
	"github.com/ojparkinson/massbalance/internal/drawing"
	"github.com/ojparkinson/massbalance/internal/geometry"
	"go.uber.org/zap"
)

type AnalysisResult struct {
	FileID            string       `json:"file_id"`
	Layers            []string     `json:"layers"`
	GreideCandidates  []Candidate  `json:"greide_candidates"`
	TerrenoCandidates []Candidate  `json:"terreno_candidates"`
	Sections          []Suggestion `json:"sections"`
	OverallConfidence float64      `json:"overall_confidence"`
}

// Analyzer guesses the profile layers, sections and scales of a drawing.
type Analyzer struct {
	builder geometry.ChainBuilder
	logger  *zap.Logger
}

func NewAnalyzer(mergeTolerance float64, logger *zap.Logger) *Analyzer {
	return &Analyzer{builder: geometry.NewChainBuilder(mergeTolerance), logger: logger}
}

func (a *Analyzer) Analyze(fileID string, d *drawing.Drawing) *AnalysisResult {
	texts := Relevant(d.Texts)
	stations := Stations(texts)
	elevations := Elevations(texts)

	greide, terreno := DetectLayers(Stats(d))

	var chains []geometry.Chain
	if len(greide) > 0 {
		groups, _ := d.Layer(greide[0].Name)
		built, err := a.builder.Build(greide[0].Name, groups, 1, 1)
		if err != nil {
			a.logger.Warn("Could not chain the best grade candidate",
				zap.String("file_id", fileID),
				zap.String("layer", greide[0].Name),
				zap.Error(err))
		}
		chains = built
	}

	sections := DetectSections(chains, stations)
	for i := range sections {
		s := &sections[i]
		var local []StationText
		for _, st := range stations {
			if st.X >= s.XStart-intervalMargin && st.X <= s.XEnd+intervalMargin {
				local = append(local, st)
			}
		}
		sc := DetectScale(elevations, local, s.StationInterval)
		s.HScale, s.VScale = sc.HScale, sc.VScale
		s.Confidence = round((s.Confidence+(sc.HConfidence+sc.VConfidence)/2)/2, 3)
	}
	if len(sections) == 0 {
		sections = []Suggestion{nominalSection()}
	}

	var confs []float64
	if len(greide) > 0 {
		confs = append(confs, greide[0].Confidence)
	}
	if len(terreno) > 0 {
		confs = append(confs, terreno[0].Confidence)
	}
	for _, s := range sections {
		confs = append(confs, s.Confidence)
	}

	var overall float64
	for _, c := range confs {
		overall += c
	}
	overall /= float64(len(confs))

	a.logger.Debug("Analysed drawing",
		zap.String("file_id", fileID),
		zap.Int("greide_candidates", len(greide)),
		zap.Int("terreno_candidates", len(terreno)),
		zap.Int("sections", len(sections)),
		zap.Float64("overall_confidence", overall))

	return &AnalysisResult{
		FileID:            fileID,
		Layers:            d.LayerNames(),
		GreideCandidates:  greide,
		TerrenoCandidates: terreno,
		Sections:          sections,
		OverallConfidence: round(overall, 3),
	}
}

// nominalSection stands in when the drawing has no usable grade.
func nominalSection() Suggestion {
	return Suggestion{
		ID:              1,
		XEnd:            1000,
		InitialStation:  defaultStation,
		StationInterval: defaultInterval,
		BinWidth:        defaultBinWidth,
		HScale:          1,
		VScale:          1,
		Confidence:      0.1,
	}
}
