package processing

import (
	"context"
	"time"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/drawing"
	"github.com/ojparkinson/massbalance/internal/metrics"
	"go.uber.org/zap"
)

type DrawingSource interface {
	LoadDrawing(fileID string) (*drawing.Drawing, error)
}

// Calculator computes requests against drawings that were uploaded earlier.
// It serves the HTTP API and the job queue.
type Calculator struct {
	source       DrawingSource
	orchestrator *Orchestrator
	sinks        []Sink
	logger       *zap.Logger
}

func NewCalculator(source DrawingSource, orchestrator *Orchestrator, sinks []Sink, logger *zap.Logger) *Calculator {
	return &Calculator{
		source:       source,
		orchestrator: orchestrator,
		sinks:        sinks,
		logger:       logger,
	}
}

// AddSink registers a sink. It must be called before the first Calculate.
func (c *Calculator) AddSink(sink Sink) {
	c.sinks = append(c.sinks, sink)
}

// Calculate returns the result even when some of its sections were rejected
// or a sink failed; only request, drawing and geometry problems are errors.
func (c *Calculator) Calculate(ctx context.Context, fileID string, req *config.CalculationRequest) (*FileResult, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	d, err := c.source.LoadDrawing(fileID)
	if err != nil {
		return nil, err
	}

	result, err := c.orchestrator.Process(ctx, d, req)
	if err != nil {
		return nil, err
	}
	result.FileID = fileID
	result.ResultID = NewID()

	if failed := Deliver(ctx, c.sinks, result, c.logger); failed > 0 {
		c.logger.Warn("Result computed but not every sink accepted it",
			zap.String("result_id", result.ResultID),
			zap.Int("failed_sinks", failed))
	}

	metrics.FilesProcessedTotal.Inc()
	metrics.FileProcessingDuration.Observe(time.Since(start).Seconds())

	c.logger.Info("Calculation finished",
		zap.String("file_id", fileID),
		zap.String("result_id", result.ResultID),
		zap.Int("sections", result.SectionsProcessed),
		zap.Int("section_errors", len(result.Sections)-result.SectionsProcessed),
		zap.Float64("total_cut", result.TotalCut),
		zap.Float64("total_fill", result.TotalFill))
	return result, nil
}
