package dashboard

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ojparkinson/massbalance/internal/inference"
	"github.com/ojparkinson/massbalance/internal/massbalance"
	"github.com/ojparkinson/massbalance/internal/processing"
	"github.com/ojparkinson/massbalance/internal/stationing"
)

func sampleResult() *processing.FileResult {
	section := stationing.Section{ID: "A", StationInterval: 20}
	ok := massbalance.NewBinResult(section, stationing.Bin{Index: 0, XStart: 0, XEnd: 100, StationStart: 1000, StationEnd: 1005}, 150, 0, nil)
	gap := massbalance.NewBinResult(section, stationing.Bin{Index: 1, XStart: 100, XEnd: 150, StationStart: 1005, StationEnd: 1007.5}, 0, 0, errors.New("no terrain"))

	return &processing.FileResult{
		Name:              "trecho",
		ResultID:          "0123456789ab",
		TotalFill:         15,
		SectionsProcessed: 1,
		BinCount:          2,
		CoverageErrors:    1,
		Sections: []processing.SectionResult{
			{Section: section, Bins: []massbalance.BinResult{ok, gap}},
			{Section: stationing.Section{ID: "B"}, Err: &stationing.ConfigError{SectionID: "B", Field: "bin_width", Reason: "missing"}},
		},
	}
}

func TestRenderResults(t *testing.T) {
	var buf bytes.Buffer
	RenderResults(&buf, []*processing.FileResult{sampleResult()}, []Failure{{File: "broken.json", Err: errors.New("bad")}}, true)

	out := buf.String()
	for _, want := range []string{"trecho", "0123456789ab", "1/2", "15.0000", "broken.json", "failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSections(t *testing.T) {
	var buf bytes.Buffer
	RenderSections(&buf, sampleResult(), true)

	out := buf.String()
	for _, want := range []string{"1000+0.00", "1007+10.00", "1 bin(s) without coverage", "bin_width"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderAnalysis(t *testing.T) {
	var buf bytes.Buffer
	RenderAnalysis(&buf, &inference.AnalysisResult{
		GreideCandidates:  []inference.Candidate{{Name: "GREIDE", Role: inference.RoleGreide, Confidence: 0.68}},
		TerrenoCandidates: []inference.Candidate{{Name: "TERRENO", Role: inference.RoleTerreno, Confidence: 0.68}},
		Sections:          []inference.Suggestion{{ID: 1, XEnd: 300, InitialStation: 1000, StationInterval: 20, Confidence: 0.775}},
		OverallConfidence: 0.712,
	}, true)

	out := buf.String()
	for _, want := range []string{"GREIDE", "TERRENO", "0.680", "0.775", "0.712"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
