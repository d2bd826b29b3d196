package processing

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ojparkinson/massbalance/internal/massbalance"
	"github.com/ojparkinson/massbalance/internal/stationing"
)

type SectionResult struct {
	Section stationing.Section
	Bins    []massbalance.BinResult
	Profile []massbalance.ProfilePoint
	// Err is the *stationing.ConfigError that kept the section from running.
	Err error
}

// Totals sums the section's bins in order. Bins with a coverage error add nothing.
func (s SectionResult) Totals() (cut, fill float64) {
	for _, b := range s.Bins {
		if !b.OK() {
			continue
		}
		cut += b.Cut
		fill += b.Fill
	}
	return cut, fill
}

type FileResult struct {
	FileID       string
	ResultID     string
	Name         string
	GreideLayer  string
	TerrenoLayer string
	Sections     []SectionResult

	TotalCut          float64
	TotalFill         float64
	SectionsProcessed int
	BinCount          int
	CoverageErrors    int
	SkippedChains     int

	CreatedAt time.Time
}

func (r *FileResult) Bins() []massbalance.BinResult {
	out := make([]massbalance.BinResult, 0, r.BinCount)
	for _, s := range r.Sections {
		out = append(out, s.Bins...)
	}
	return out
}

func (r *FileResult) Profiles() []massbalance.SectionProfile {
	out := make([]massbalance.SectionProfile, 0, len(r.Sections))
	for _, s := range r.Sections {
		if s.Err != nil {
			continue
		}
		out = append(out, massbalance.SectionProfile{SectionID: s.Section.ID, Points: s.Profile})
	}
	return out
}

type SectionError struct {
	SectionID string `json:"section_id"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
}

func (r *FileResult) SectionErrors() []SectionError {
	var out []SectionError
	for _, s := range r.Sections {
		if s.Err == nil {
			continue
		}
		se := SectionError{SectionID: s.Section.ID, Message: s.Err.Error()}
		var cfgErr *stationing.ConfigError
		if errors.As(s.Err, &cfgErr) {
			se.Field = cfgErr.Field
		}
		out = append(out, se)
	}
	return out
}

// CalculationResponse is the JSON shape returned to clients and published
// to subscribers.
type CalculationResponse struct {
	ResultID          string                       `json:"result_id"`
	FileID            string                       `json:"file_id"`
	Name              string                       `json:"name"`
	TotalCut          float64                      `json:"total_cut"`
	TotalFill         float64                      `json:"total_fill"`
	SectionsProcessed int                          `json:"sections_processed"`
	CoverageErrors    int                          `json:"coverage_errors"`
	Bins              []massbalance.BinResult      `json:"bins"`
	Profiles          []massbalance.SectionProfile `json:"profiles"`
	SectionErrors     []SectionError               `json:"section_errors,omitempty"`
}

func (r *FileResult) Response() CalculationResponse {
	profiles := r.Profiles()
	for i := range profiles {
		points := make([]massbalance.ProfilePoint, len(profiles[i].Points))
		for j, p := range profiles[i].Points {
			points[j] = massbalance.ProfilePoint{
				X:                p.X,
				Station:          massbalance.Round(p.Station),
				ElevationGreide:  massbalance.Round(p.ElevationGreide),
				ElevationTerrain: massbalance.Round(p.ElevationTerrain),
			}
		}
		profiles[i].Points = points
	}

	return CalculationResponse{
		ResultID:          r.ResultID,
		FileID:            r.FileID,
		Name:              r.Name,
		TotalCut:          massbalance.Round(r.TotalCut),
		TotalFill:         massbalance.Round(r.TotalFill),
		SectionsProcessed: r.SectionsProcessed,
		CoverageErrors:    r.CoverageErrors,
		Bins:              r.Bins(),
		Profiles:          profiles,
		SectionErrors:     r.SectionErrors(),
	}
}

// NewID returns a 12 character hex identifier for files and results.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
