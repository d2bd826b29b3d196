package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ojparkinson/massbalance/internal/processing"
	"go.uber.org/zap"
)

// startWorker runs until the pool is cancelled. WorkerTimeout bounds the
// time spent on a single item, never the worker itself: a worker that quit
// on its own would leave Stop waiting on items nobody can pick up.
func (wp *WorkerPool) startWorker(workerID int) {
	for {
		select {
		case workItem := <-wp.fileQueue:
			wp.runWorkItem(workerID, workItem)

		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) runWorkItem(workerID int, item WorkItem) {
	itemCtx, cancel := context.WithTimeout(wp.ctx, wp.config.WorkerTimeout)
	defer cancel()
	wp.processWorkItem(itemCtx, workerID, item)
}

func (wp *WorkerPool) processWorkItem(ctx context.Context, workerID int, item WorkItem) {
	startTime := time.Now()

	if item.FileInfo == nil {
		wp.logger.Error("Worker FileInfo is nil", zap.Int("worker_id", workerID), zap.String("file_path", item.FilePath))
		wp.errorsChan <- WorkError{
			FilePath:   item.FilePath,
			Error:      fmt.Errorf("FileInfo is nil"),
			Retry:      false,
			WorkerID:   workerID,
			RetryCount: item.RetryCount,
			Timestamp:  time.Now(),
		}
		return
	}

	filename := item.FileInfo.Name()
	wp.UpdateWorkerStatus(workerID, filename, "PROCESSING")

	processor := processing.NewFileProcessor(wp.config, workerID, wp.orchestrator, wp.request, wp.sinks, wp.logger)
	if wp.progressDisplay != nil {
		processor.SetProgressCallback(wp.progressDisplay.ForWorker(workerID))
	}

	processCtx, processCancel := context.WithTimeout(ctx, wp.config.FileProcessTimeout)
	defer processCancel()

	result, processErr := processor.ProcessFile(processCtx, filepath.Dir(item.FilePath), item.FileInfo)
	if processErr != nil && errors.Is(processCtx.Err(), context.DeadlineExceeded) {
		processErr = fmt.Errorf("file processing timeout after %v: %w", wp.config.FileProcessTimeout, processErr)
		wp.logger.Error("File processing timeout",
			zap.String("file", item.FilePath),
			zap.Duration("timeout", wp.config.FileProcessTimeout),
			zap.String("action", "Drawing may be unusually large - consider increasing FILE_PROCESS_TIMEOUT"))
	}

	if processErr != nil {
		wp.UpdateWorkerStatus(workerID, filename, "ERROR")
		wp.errorsChan <- WorkError{
			FilePath:   item.FilePath,
			Error:      processErr,
			Retry:      shouldRetry(processErr),
			WorkerID:   workerID,
			RetryCount: item.RetryCount,
			Timestamp:  time.Now(),
		}
		return
	}

	wp.resultsChan <- WorkResult{
		FilePath:    item.FilePath,
		Result:      result.Result,
		BinCount:    result.BinCount,
		FailedSinks: result.FailedSinks,
		Duration:    time.Since(startTime),
		WorkerID:    workerID,
	}
}

// shouldRetry reports whether the error kind is worth another attempt.
// handleError applies the MaxRetries cap.
func shouldRetry(err error) bool {
	return processing.Retryable(err)
}
