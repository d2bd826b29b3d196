package persistance

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ojparkinson/massbalance/internal/massbalance"
	"github.com/ojparkinson/massbalance/internal/processing"
	"github.com/ojparkinson/massbalance/internal/stationing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testResult() *processing.FileResult {
	section := stationing.Section{ID: "trecho 1", StationInterval: 20}
	ok := massbalance.NewBinResult(section, stationing.Bin{Index: 0, XStart: 0, XEnd: 100, StationStart: 1000, StationEnd: 1005}, 150.123456, 0, nil)
	gap := massbalance.NewBinResult(section, stationing.Bin{Index: 1, XStart: 100, XEnd: 150, StationStart: 1005, StationEnd: 1007.5}, 0, 0,
		&massbalance.CoverageError{SectionID: "trecho 1", BinIndex: 1, XStart: 100, XEnd: 150, Layers: []string{"TERRENO"}})

	return &processing.FileResult{
		FileID:    "0123456789ab",
		ResultID:  "ba9876543210",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		BinCount:  2,
		Sections:  []processing.SectionResult{{Section: section, Bins: []massbalance.BinResult{ok, gap}}},
	}
}

func TestBinRows(t *testing.T) {
	rows := binRows(testResult())
	require.Len(t, rows, 2)

	assert.Equal(t, "trecho_1", rows[0].SectionID)
	assert.Equal(t, int64(0), rows[0].Index)
	assert.Equal(t, 150.1235, rows[0].Doubles["area_vt"])
	assert.Equal(t, 15.0123, rows[0].Doubles["fill"])
	assert.Empty(t, rows[0].Error)

	_, hasArea := rows[1].Doubles["area_vt"]
	assert.False(t, hasArea, "bins without coverage carry no areas")
	assert.Contains(t, rows[1].Error, "TERRENO")
	assert.Equal(t, 50.0, rows[1].Doubles["dist_m"])
}

func TestSanitise(t *testing.T) {
	tests := map[string]string{
		"":                  "unknown",
		"clean":             "clean",
		"track name":        "track_name",
		"a,b=c":             "a_b_c",
		`with "quotes"\too`: "with_quotestoo",
	}
	for in, want := range tests {
		if got := sanitise(in); got != want {
			t.Fatalf("sanitise(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateDouble(t *testing.T) {
	assert.Equal(t, 0.0, validateDouble(math.NaN()))
	assert.Equal(t, 0.0, validateDouble(math.Inf(-1)))
	assert.Equal(t, -1.5, validateDouble(-1.5))
}

func TestBinPoints(t *testing.T) {
	points := binPoints(testResult())
	require.Len(t, points, 2)

	p := points[0]
	assert.Equal(t, binMeasurement, p.Name())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"file_id": "0123456789ab", "result_id": "ba9876543210", "section_id": "trecho_1"}, tags)

	fields := map[string]interface{}{}
	for _, f := range points[1].FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Contains(t, fields["error"], "TERRENO")
	assert.NotContains(t, fields, "cut")

	assert.True(t, points[1].Time().After(points[0].Time()))
}

func newTestSchema(url string) *Schema {
	s := NewSchema("unused", 0, zap.NewNop())
	s.baseURL = url
	s.baseDelay = time.Millisecond
	s.maxRetries = 3
	return s
}

func TestCreateTableHTTP(t *testing.T) {
	var calls atomic.Int32
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		query = r.URL.Query().Get("query")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestSchema(srv.URL).CreateTableHTTP(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, strings.Contains(query, "CREATE TABLE IF NOT EXISTS MassBalanceBins"))
	assert.Contains(t, query, "DEDUP UPSERT KEYS(timestamp, result_id, section_id, bin_index)")
}

func TestCreateTableHTTPFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "syntax error", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestSchema(srv.URL).CreateTableHTTP(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestCreateTableHTTPCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestSchema(srv.URL).CreateTableHTTP(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}
