package persistance

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ojparkinson/massbalance/internal/massbalance"
	"github.com/ojparkinson/massbalance/internal/processing"
	qdb "github.com/questdb/go-questdb-client/v4"
)

// binRow is one bin as stored in QuestDB and InfluxDB.
type binRow struct {
	FileID    string
	ResultID  string
	SectionID string
	Index     int64

	Doubles map[string]float64
	Error   string
}

var locationColumns = []string{"x_start", "x_end", "station_start", "station_end", "dist_m", "dist_stations"}

var areaColumns = []string{"area_vt", "area_pf", "area_diff", "cut", "fill"}

func binRows(result *processing.FileResult) []binRow {
	bins := result.Bins()
	rows := make([]binRow, 0, len(bins))
	for _, b := range bins {
		row := binRow{
			FileID:    sanitise(result.FileID),
			ResultID:  sanitise(result.ResultID),
			SectionID: sanitise(b.SectionID),
			Index:     int64(b.Index),
			Doubles: map[string]float64{
				"x_start":       validateDouble(b.XStart),
				"x_end":         validateDouble(b.XEnd),
				"station_start": validateDouble(b.StationStart),
				"station_end":   validateDouble(b.StationEnd),
				"dist_m":        validateDouble(b.DistM),
				"dist_stations": validateDouble(b.DistStations),
			},
		}
		if b.OK() {
			row.Doubles["area_vt"] = validateDouble(massbalance.Round(b.AreaVT))
			row.Doubles["area_pf"] = validateDouble(massbalance.Round(b.AreaPF))
			row.Doubles["area_diff"] = validateDouble(massbalance.Round(b.AreaDiff))
			row.Doubles["cut"] = validateDouble(massbalance.Round(b.Cut))
			row.Doubles["fill"] = validateDouble(massbalance.Round(b.Fill))
		} else {
			row.Error = b.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// QuestDBSink writes every bin of a result as a row of MassBalanceBins.
type QuestDBSink struct {
	pool *SenderPool
}

func NewQuestDBSink(pool *SenderPool) *QuestDBSink {
	return &QuestDBSink{pool: pool}
}

func (q *QuestDBSink) Name() string { return "questdb" }

func (q *QuestDBSink) Write(ctx context.Context, result *processing.FileResult) error {
	sender, err := q.pool.Get(ctx)
	if err != nil {
		return err
	}
	defer q.pool.Return(sender)

	ts := result.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return WriteBatch(ctx, sender, binRows(result), ts)
}

func WriteBatch(ctx context.Context, sender qdb.LineSender, rows []binRow, ts time.Time) error {
	for _, row := range rows {
		line := sender.Table(binTable).
			Symbol("file_id", row.FileID).
			Symbol("result_id", row.ResultID).
			Symbol("section_id", row.SectionID).
			Int64Column("bin_index", row.Index)

		for _, col := range locationColumns {
			line = line.Float64Column(col, row.Doubles[col])
		}
		for _, col := range areaColumns {
			if v, ok := row.Doubles[col]; ok {
				line = line.Float64Column(col, v)
			}
		}
		if row.Error != "" {
			line = line.StringColumn("error", row.Error)
		}

		if err := line.At(ctx, ts); err != nil {
			return fmt.Errorf("failed to write bin %s/%d: %w", row.SectionID, row.Index, err)
		}
	}

	if err := sender.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush %d bins: %w", len(rows), err)
	}
	return nil
}

// validateDouble maps values QuestDB cannot store to zero.
func validateDouble(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

var symbolReplacer = strings.NewReplacer(",", "_", "=", "_", " ", "_", "\n", "_", "\r", "_", `"`, "", `\`, "")

// sanitise strips the characters that break a symbol in line protocol.
func sanitise(s string) string {
	if s == "" {
		return "unknown"
	}
	return symbolReplacer.Replace(s)
}
