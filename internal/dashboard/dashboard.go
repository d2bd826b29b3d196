package dashboard

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/ojparkinson/massbalance/internal/inference"
	"github.com/ojparkinson/massbalance/internal/processing"
	"github.com/ojparkinson/massbalance/internal/stationing"
	"github.com/ojparkinson/massbalance/internal/worker"
)

// Failure is a drawing that produced no result.
type Failure struct {
	File string
	Err  error
}

func newTable(w io.Writer, plain bool) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if plain {
		t.SetStyle(table.StyleLight)
	} else {
		t.SetStyle(table.StyleColoredBright)
	}
	return t
}

func number(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

// RenderResults prints one row per drawing with a totals footer.
func RenderResults(w io.Writer, results []*processing.FileResult, failures []Failure, plain bool) {
	t := newTable(w, plain)
	t.SetTitle("Mass balance")
	t.AppendHeader(table.Row{"Drawing", "Result", "Sections", "Bins", "Coverage errors", "Cut", "Fill"})

	var cut, fill float64
	var bins, coverage int
	for _, r := range results {
		t.AppendRow(table.Row{
			r.Name,
			r.ResultID,
			fmt.Sprintf("%d/%d", r.SectionsProcessed, len(r.Sections)),
			r.BinCount,
			r.CoverageErrors,
			number(r.TotalCut),
			number(r.TotalFill),
		})
		cut += r.TotalCut
		fill += r.TotalFill
		bins += r.BinCount
		coverage += r.CoverageErrors
	}
	for _, f := range failures {
		t.AppendRow(table.Row{f.File, "failed", "-", "-", "-", "-", "-"})
	}

	t.AppendSeparator()
	t.AppendFooter(table.Row{"Total", "", "", bins, coverage, number(cut), number(fill)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}

// RenderSections prints the per-section totals of one drawing, including
// the sections rejected for bad parameters.
func RenderSections(w io.Writer, r *processing.FileResult, plain bool) {
	t := newTable(w, plain)
	t.SetTitle(r.Name)
	t.AppendHeader(table.Row{"Section", "From", "To", "Bins", "Cut", "Fill", "Note"})

	for _, s := range r.Sections {
		if s.Err != nil {
			t.AppendRow(table.Row{s.Section.ID, "-", "-", "-", "-", "-", s.Err.Error()})
			continue
		}

		cut, fill := s.Totals()
		from, to := "-", "-"
		if n := len(s.Bins); n > 0 {
			from = stationing.FormatStation(s.Bins[0].StationStart, s.Section.StationInterval)
			to = stationing.FormatStation(s.Bins[n-1].StationEnd, s.Section.StationInterval)
		}

		note := ""
		missing := 0
		for _, b := range s.Bins {
			if !b.OK() {
				missing++
			}
		}
		if missing > 0 {
			note = fmt.Sprintf("%d bin(s) without coverage", missing)
		}
		t.AppendRow(table.Row{s.Section.ID, from, to, len(s.Bins), number(cut), number(fill), note})
	}
	t.Render()
}

// RenderAnalysis prints the layer candidates and suggested sections.
func RenderAnalysis(w io.Writer, a *inference.AnalysisResult, plain bool) {
	candidates := newTable(w, plain)
	candidates.SetTitle(fmt.Sprintf("Layer candidates (overall confidence %.3f)", a.OverallConfidence))
	candidates.AppendHeader(table.Row{"Role", "Layer", "Confidence", "Entities", "Length"})
	for _, list := range [][]inference.Candidate{a.GreideCandidates, a.TerrenoCandidates} {
		for _, c := range list {
			candidates.AppendRow(table.Row{c.Role, c.Name, fmt.Sprintf("%.3f", c.Confidence), c.EntityCount, fmt.Sprintf("%.2f", c.TotalLength)})
		}
		candidates.AppendSeparator()
	}
	candidates.Render()

	sections := newTable(w, plain)
	sections.SetTitle("Suggested sections")
	sections.AppendHeader(table.Row{"#", "x start", "x end", "Initial station", "Interval", "H scale", "V scale", "Confidence"})
	for _, s := range a.Sections {
		sections.AppendRow(table.Row{
			s.ID, s.XStart, s.XEnd, s.InitialStation, s.StationInterval, s.HScale, s.VScale,
			fmt.Sprintf("%.3f", s.Confidence),
		})
	}
	sections.Render()
}

// RenderWorkers prints the per-worker totals collected by the pool.
func RenderWorkers(w io.Writer, m worker.PoolMetrics, plain bool) {
	t := newTable(w, plain)
	t.AppendHeader(table.Row{"Worker", "Files", "Sections", "Bins", "Errors", "Avg/file"})

	for _, wm := range m.WorkerMetrics {
		t.AppendRow(table.Row{
			fmt.Sprintf("Worker %d", wm.WorkerID),
			wm.FilesProcessed,
			wm.TotalSections,
			wm.TotalBins,
			wm.ErrorCount,
			wm.AvgTimePerFile.Round(time.Microsecond).String(),
		})
	}

	t.AppendSeparator()
	t.AppendFooter(table.Row{"Total", m.TotalFilesProcessed, "-", m.TotalBins, m.TotalErrors, "-"})
	t.Render()
}
