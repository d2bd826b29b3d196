package drawing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ojparkinson/massbalance/internal/geometry"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported drawing format")
	ErrCADFile           = errors.New("CAD files are not read directly")
	ErrInvalidDocument   = errors.New("invalid drawing document")
)

// Drawing is the decomposed content of one CAD drawing: every entity of a
// layer already exploded into a group of points, plus free text entities.
type Drawing struct {
	Name   string
	Layers map[string][]geometry.PointGroup
	Texts  []Text
}

type Text struct {
	Value string  `json:"text" yaml:"text"`
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Layer string  `json:"layer,omitempty" yaml:"layer,omitempty"`
}

type document struct {
	Name   string                   `json:"name" yaml:"name"`
	Layers map[string][][][]float64 `json:"layers" yaml:"layers"`
	Texts  []Text                   `json:"texts" yaml:"texts"`
}

// FormatFromPath picks the decoder from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".dwg", ".dxf":
		return "", fmt.Errorf("%w: %s\nAction: Export the drawing's layers and texts to a .json or .yaml drawing document", ErrCADFile, filepath.Base(path))
	default:
		return "", fmt.Errorf("%w: %s\nAction: Use a .json, .yaml or .yml drawing document", ErrUnsupportedFormat, filepath.Base(path))
	}
}

func Load(path string) (*Drawing, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open drawing %s: %w", path, err)
	}
	defer f.Close()

	d, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	if d.Name == "" {
		d.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return d, nil
}

func Decode(r io.Reader, format Format) (*Drawing, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	case FormatYAML:
		err = yaml.Unmarshal(raw, &doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	d := &Drawing{
		Name:   doc.Name,
		Layers: make(map[string][]geometry.PointGroup, len(doc.Layers)),
		Texts:  doc.Texts,
	}
	for name, entities := range doc.Layers {
		groups := make([]geometry.PointGroup, 0, len(entities))
		for i, entity := range entities {
			group := make(geometry.PointGroup, 0, len(entity))
			for j, xy := range entity {
				if len(xy) != 2 {
					return nil, fmt.Errorf("%w: layer %q entity %d point %d: expected [x, y], got %d values", ErrInvalidDocument, name, i, j, len(xy))
				}
				if math.IsNaN(xy[0]) || math.IsNaN(xy[1]) {
					return nil, fmt.Errorf("%w: layer %q entity %d point %d: coordinate is NaN", ErrInvalidDocument, name, i, j)
				}
				group = append(group, geometry.Point{X: xy[0], Y: xy[1]})
			}
			groups = append(groups, group)
		}
		d.Layers[name] = groups
	}
	return d, nil
}

// LayerNames lists the layers in sorted order.
func (d *Drawing) LayerNames() []string {
	names := make([]string, 0, len(d.Layers))
	for name := range d.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Drawing) Layer(name string) ([]geometry.PointGroup, bool) {
	groups, ok := d.Layers[name]
	return groups, ok
}

// Supported reports whether path names a drawing document this package decodes.
func Supported(path string) bool {
	_, err := FormatFromPath(path)
	return err == nil
}
