package persistance

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/ojparkinson/massbalance/internal/processing"
)

const binMeasurement = "mass_balance_bin"

// InfluxSink mirrors the QuestDB rows into an InfluxDB bucket.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	options := influxdb2.DefaultOptions()
	options.SetHTTPRequestTimeout(30)

	client := influxdb2.NewClientWithOptions(url, token, options)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) Write(ctx context.Context, result *processing.FileResult) error {
	points := binPoints(result)
	if len(points) == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write %d points: %w", len(points), err)
	}
	return nil
}

func (s *InfluxSink) Close() {
	s.client.Close()
}

// binPoints spaces the bins of a result one microsecond apart so each keeps
// its own point.
func binPoints(result *processing.FileResult) []*write.Point {
	ts := result.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	rows := binRows(result)
	points := make([]*write.Point, 0, len(rows))
	for i, row := range rows {
		fields := make(map[string]interface{}, len(row.Doubles)+2)
		for k, v := range row.Doubles {
			fields[k] = v
		}
		fields["bin_index"] = row.Index
		if row.Error != "" {
			fields["error"] = row.Error
		}

		points = append(points, influxdb2.NewPoint(
			binMeasurement,
			map[string]string{
				"file_id":    row.FileID,
				"result_id":  row.ResultID,
				"section_id": row.SectionID,
			},
			fields,
			ts.Add(time.Duration(i)*time.Microsecond),
		))
	}
	return points
}
