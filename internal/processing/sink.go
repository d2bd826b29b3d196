package processing

import (
	"context"
	"time"

	"github.com/ojparkinson/massbalance/internal/metrics"
	"go.uber.org/zap"
)

// Sink receives finished results. Sinks run after the computation and a
// failing sink never invalidates the result.
type Sink interface {
	Name() string
	Write(ctx context.Context, result *FileResult) error
}

// Deliver hands result to every sink in order and returns the number of
// sinks that failed.
func Deliver(ctx context.Context, sinks []Sink, result *FileResult, logger *zap.Logger) int {
	failed := 0
	for _, sink := range sinks {
		start := time.Now()
		err := sink.Write(ctx, result)
		metrics.SinkWriteDuration.WithLabelValues(sink.Name()).Observe(time.Since(start).Seconds())

		if err != nil {
			failed++
			metrics.SinkErrorsTotal.WithLabelValues(sink.Name()).Inc()
			logger.Error("Failed to deliver result",
				zap.String("sink", sink.Name()),
				zap.String("result_id", result.ResultID),
				zap.Error(err),
				zap.String("action", "Check the sink's service is reachable; the result is kept locally"))
			continue
		}
		metrics.SinkWritesTotal.WithLabelValues(sink.Name()).Inc()
	}
	return failed
}
