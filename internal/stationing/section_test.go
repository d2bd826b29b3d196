package stationing

import (
	"errors"
	"math"
	"testing"
)

func validSection() Section {
	return Section{
		ID:              "S1",
		XStart:          0,
		XEnd:            250,
		InitialStation:  1000,
		StationInterval: 20,
		BinWidth:        100,
		HScale:          1,
		VScale:          1,
	}
}

func TestBinsClipLastBin(t *testing.T) {
	var bins []Bin
	for b := range validSection().Bins() {
		bins = append(bins, b)
	}

	if len(bins) != 3 {
		t.Fatalf("got %d bins, want 3", len(bins))
	}
	want := [][2]float64{{0, 100}, {100, 200}, {200, 250}}
	for i, b := range bins {
		if b.Index != i || b.XStart != want[i][0] || b.XEnd != want[i][1] {
			t.Fatalf("bin %d = %+v, want %v", i, b, want[i])
		}
	}
	if bins[2].StationStart != 1010 || bins[2].StationEnd != 1012.5 {
		t.Fatalf("unexpected stations for last bin: %+v", bins[2])
	}
}

func TestBinsRestartable(t *testing.T) {
	seq := validSection().Bins()
	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	if first != second || first != 3 {
		t.Fatalf("iterations differ: %d vs %d", first, second)
	}
}

func TestBinsEarlyStop(t *testing.T) {
	count := 0
	for range validSection().Bins() {
		count++
		if count == 1 {
			break
		}
	}
	if count != 1 {
		t.Fatalf("expected to stop after one bin, got %d", count)
	}
}

func TestBinsExactMultiple(t *testing.T) {
	s := validSection()
	s.XEnd = 300
	if n := s.BinCount(); n != 3 {
		t.Fatalf("got %d bins, want 3", n)
	}
}

func TestBinsScaledRange(t *testing.T) {
	s := validSection()
	s.XEnd = 30
	s.HScale = 10
	var last Bin
	for b := range s.Bins() {
		last = b
	}
	if last.XEnd != 300 || last.Index != 2 {
		t.Fatalf("expected 3 bins ending at 300, last was %+v", last)
	}
}

func TestBinsNoDrift(t *testing.T) {
	s := validSection()
	s.BinWidth = 0.1
	s.XEnd = 1000
	var last Bin
	for b := range s.Bins() {
		last = b
	}
	if last.Index != 9999 {
		t.Fatalf("expected 10000 bins, last index %d", last.Index)
	}
	if math.Abs(last.XEnd-1000) > 1e-9 {
		t.Fatalf("last bin ends at %v", last.XEnd)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Section)
		field  string
	}{
		{name: "inverted range", mutate: func(s *Section) { s.XStart, s.XEnd = 300, 0 }, field: "x_end"},
		{name: "empty range", mutate: func(s *Section) { s.XEnd = s.XStart }, field: "x_end"},
		{name: "zero bin width", mutate: func(s *Section) { s.BinWidth = 0 }, field: "bin_width"},
		{name: "negative station interval", mutate: func(s *Section) { s.StationInterval = -20 }, field: "station_interval"},
		{name: "zero h scale", mutate: func(s *Section) { s.HScale = 0 }, field: "h_scale"},
		{name: "nan initial station", mutate: func(s *Section) { s.InitialStation = math.NaN() }, field: "initial_station"},
	}

	if err := validSection().Validate(); err != nil {
		t.Fatalf("valid section rejected: %v", err)
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSection()
			tc.mutate(&s)

			var cfgErr *ConfigError
			if err := s.Validate(); !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tc.field || cfgErr.SectionID != "S1" {
				t.Fatalf("got field %q section %q", cfgErr.Field, cfgErr.SectionID)
			}
		})
	}
}

func TestFormatStation(t *testing.T) {
	testCases := []struct {
		station  float64
		interval float64
		want     string
	}{
		{1000, 20, "1000+0.00"},
		{1000.75, 20, "1000+15.00"},
		{1012.5, 20, "1012+10.00"},
		{1000.99999, 20, "1001+0.00"},
	}

	for _, tc := range testCases {
		if got := FormatStation(tc.station, tc.interval); got != tc.want {
			t.Errorf("FormatStation(%v, %v) = %q, want %q", tc.station, tc.interval, got, tc.want)
		}
	}
}

func TestValidateMissingField(t *testing.T) {
	s := validSection()
	s.Missing = []string{"bin_width", "v_scale"}

	var cfgErr *ConfigError
	if err := s.Validate(); !errors.As(err, &cfgErr) || cfgErr.Field != "bin_width" {
		t.Fatalf("expected missing bin_width, got %v", err)
	}
}
