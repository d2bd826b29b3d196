package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ojparkinson/massbalance/internal/massbalance"
	"github.com/ojparkinson/massbalance/internal/stationing"
)

func TestWriteCSV(t *testing.T) {
	section := stationing.Section{ID: "A", StationInterval: 20}
	ok := massbalance.NewBinResult(section, stationing.Bin{Index: 0, XStart: 0, XEnd: 100, StationStart: 1000, StationEnd: 1005}, 200, 0.123456, nil)
	failed := massbalance.NewBinResult(section, stationing.Bin{Index: 1, XStart: 100, XEnd: 150, StationStart: 1005, StationEnd: 1007.5}, 0, 0, &massbalance.CoverageError{})

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []massbalance.BinResult{ok, failed}); err != nil {
		t.Fatalf("WriteCSV returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}

	want := []string{
		"trecho;x_inicio;x_fim;estaca_inicio;estaca_fim;distancia_m;distancia_estacas;area_vt_greide;area_perfil_recortado;area_diferenca;area_corte;area_aterro",
		"A;0;100;1000;1005;100;5;200;0.1235;199.8765;0.0123;20",
		"A;100;150;1005;1007.5;50;2.5;;;;;",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestConvertToGeoJSON(t *testing.T) {
	profiles := []massbalance.SectionProfile{
		{SectionID: "A", Points: []massbalance.ProfilePoint{
			{Station: 1000, ElevationGreide: 10, ElevationTerrain: 9},
			{Station: 1005, ElevationGreide: 8, ElevationTerrain: 9},
		}},
		{SectionID: "B", Points: []massbalance.ProfilePoint{{Station: 1000}}},
	}

	fc := ConvertToGeoJSON("abc", profiles, ConversionOptions{})
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("unexpected collection %+v", fc)
	}
	if fc.Features[1].Properties["profile"] != "terreno" {
		t.Fatalf("second feature should be terrain, got %v", fc.Features[1].Properties)
	}
	if got := fc.Features[0].Geometry.Coordinates[1]; got[0] != 1005 || got[1] != 8 {
		t.Fatalf("unexpected grade position %v", got)
	}
}
