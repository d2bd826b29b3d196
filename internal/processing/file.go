package processing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/drawing"
	"github.com/ojparkinson/massbalance/internal/metrics"
	"go.uber.org/zap"
)

// FileProcessor loads one drawing, computes it and hands the result to the sinks.
type FileProcessor struct {
	config           *config.Config
	workerID         int
	orchestrator     *Orchestrator
	request          *config.CalculationRequest
	sinks            []Sink
	logger           *zap.Logger
	progressCallback ProgressCallback
}

type ProcessResult struct {
	Result       *FileResult
	SectionCount int
	BinCount     int
	FailedSinks  int
}

func NewFileProcessor(cfg *config.Config, workerID int, orchestrator *Orchestrator, request *config.CalculationRequest, sinks []Sink, logger *zap.Logger) *FileProcessor {
	return &FileProcessor{
		config:           cfg,
		workerID:         workerID,
		orchestrator:     orchestrator,
		request:          request,
		sinks:            sinks,
		logger:           logger,
		progressCallback: &NoOpProgressCallback{},
	}
}

func (fp *FileProcessor) SetProgressCallback(callback ProgressCallback) {
	if callback != nil {
		fp.progressCallback = callback
	}
}

func (fp *FileProcessor) ProcessFile(ctx context.Context, folder string, fileEntry os.DirEntry) (*ProcessResult, error) {
	start := time.Now()
	fileName := fileEntry.Name()
	path := filepath.Join(folder, fileName)

	d, err := drawing.Load(path)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := fp.orchestrator.WithProgress(fp.progressCallback).Process(ctx, d, fp.request)
	if err != nil {
		return nil, err
	}
	result.FileID = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	result.ResultID = NewID()

	failed := Deliver(ctx, fp.sinks, result, fp.logger.With(zap.Int("worker_id", fp.workerID)))

	metrics.FilesProcessedTotal.Inc()
	metrics.FileProcessingDuration.Observe(time.Since(start).Seconds())

	if result.SectionsProcessed == 0 && len(result.Sections) > 0 {
		return &ProcessResult{Result: result, FailedSinks: failed},
			fmt.Errorf("no section of %s could be computed: %w\nAction: Review the section parameters in the request", fileName, result.Sections[0].Err)
	}

	return &ProcessResult{
		Result:       result,
		SectionCount: result.SectionsProcessed,
		BinCount:     result.BinCount,
		FailedSinks:  failed,
	}, nil
}
