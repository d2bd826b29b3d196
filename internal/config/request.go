package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ojparkinson/massbalance/internal/stationing"
	"gopkg.in/yaml.v3"
)

var ErrInvalidRequest = errors.New("invalid calculation request")

// CalculationRequest selects the two profile layers and the sections to
// compute. Section parameters have no defaults: an absent field rejects
// that section only.
type CalculationRequest struct {
	GreideLayer    string           `json:"greide_layer" yaml:"greide_layer"`
	TerrenoLayer   string           `json:"terreno_layer" yaml:"terreno_layer"`
	MergeTolerance *float64         `json:"merge_tolerance,omitempty" yaml:"merge_tolerance,omitempty"`
	Sections       []SectionRequest `json:"sections" yaml:"sections"`
}

type SectionRequest struct {
	ID              string   `json:"id" yaml:"id"`
	XStart          *float64 `json:"x_start" yaml:"x_start"`
	XEnd            *float64 `json:"x_end" yaml:"x_end"`
	InitialStation  *float64 `json:"initial_station" yaml:"initial_station"`
	StationInterval *float64 `json:"station_interval" yaml:"station_interval"`
	BinWidth        *float64 `json:"bin_width" yaml:"bin_width"`
	HScale          *float64 `json:"h_scale" yaml:"h_scale"`
	VScale          *float64 `json:"v_scale" yaml:"v_scale"`
}

func LoadRequest(path string) (*CalculationRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open request %s: %w\nAction: Check the --request path", path, err)
	}
	defer f.Close()

	yamlFile := false
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		yamlFile = true
	}
	return DecodeRequest(f, yamlFile)
}

func DecodeRequest(r io.Reader, yamlFile bool) (*CalculationRequest, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var req CalculationRequest
	if yamlFile {
		err = yaml.Unmarshal(raw, &req)
	} else {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&req)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks the request-wide fields. Section fields are checked per
// section when the sections are built.
func (r *CalculationRequest) Validate() error {
	if strings.TrimSpace(r.GreideLayer) == "" {
		return fmt.Errorf("%w: greide_layer is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.TerrenoLayer) == "" {
		return fmt.Errorf("%w: terreno_layer is required", ErrInvalidRequest)
	}
	if len(r.Sections) == 0 {
		return fmt.Errorf("%w: at least one section is required", ErrInvalidRequest)
	}
	if r.MergeTolerance != nil && *r.MergeTolerance < 0 {
		return fmt.Errorf("%w: merge_tolerance must not be negative", ErrInvalidRequest)
	}
	return nil
}

// Tolerance returns the request's merge tolerance or the configured default.
func (r *CalculationRequest) Tolerance(fallback float64) float64 {
	if r.MergeTolerance != nil {
		return *r.MergeTolerance
	}
	return fallback
}

// SectionList converts the requested sections. Absent fields are recorded
// on the section so that validation rejects it without affecting the others.
func (r *CalculationRequest) SectionList() []stationing.Section {
	sections := make([]stationing.Section, len(r.Sections))
	for i, sr := range r.Sections {
		s := stationing.Section{ID: sr.ID}
		if s.ID == "" {
			s.ID = fmt.Sprintf("%d", i+1)
		}

		fields := []struct {
			name  string
			value *float64
			dst   *float64
		}{
			{"x_start", sr.XStart, &s.XStart},
			{"x_end", sr.XEnd, &s.XEnd},
			{"initial_station", sr.InitialStation, &s.InitialStation},
			{"station_interval", sr.StationInterval, &s.StationInterval},
			{"bin_width", sr.BinWidth, &s.BinWidth},
			{"h_scale", sr.HScale, &s.HScale},
			{"v_scale", sr.VScale, &s.VScale},
		}
		for _, f := range fields {
			if f.value == nil {
				s.Missing = append(s.Missing, f.name)
				continue
			}
			*f.dst = *f.value
		}
		sections[i] = s
	}
	return sections
}
