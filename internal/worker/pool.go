package worker

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/metrics"
	"github.com/ojparkinson/massbalance/internal/processing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Helper to convert os.FileInfo to os.DirEntry for retry logic
type dirEntryFromFileInfo struct {
	os.FileInfo
}

func (d *dirEntryFromFileInfo) Type() os.FileMode {
	return d.FileInfo.Mode().Type()
}

func (d *dirEntryFromFileInfo) Info() (os.FileInfo, error) {
	return d.FileInfo, nil
}

// EntryFor stats path and wraps it as a directory entry.
func EntryFor(path string) (os.DirEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &dirEntryFromFileInfo{info}, nil
}

type WorkerPool struct {
	config       *config.Config
	orchestrator *processing.Orchestrator
	request      *config.CalculationRequest
	sinks        []processing.Sink

	fileQueue   chan WorkItem
	resultsChan chan WorkResult
	errorsChan  chan WorkError
	ctx         context.Context
	cancel      context.CancelFunc
	eg          *errgroup.Group
	collectors  sync.WaitGroup
	pending     sync.WaitGroup
	metrics     PoolMetrics
	mu          sync.Mutex

	logger *zap.Logger

	workerMetrics   []WorkerMetrics
	progressDisplay *ProgressDisplay

	results  []WorkResult
	failures []WorkError
}

type PoolMetrics struct {
	TotalFilesProcessed int
	TotalBins           int
	TotalErrors         int
	TotalRetries        int
	FailedSinkWrites    int
	StartTime           time.Time
	ActiveWorkers       int
	QueueDepth          int
	WorkerMetrics       []WorkerMetrics
}

func NewWorkerPool(ctx context.Context, cfg *config.Config, orchestrator *processing.Orchestrator, request *config.CalculationRequest, sinks []processing.Sink, logger *zap.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	workerMetrics := make([]WorkerMetrics, cfg.WorkerCount)
	for i := range workerMetrics {
		workerMetrics[i] = WorkerMetrics{
			WorkerID:     i,
			LastActivity: time.Now(),
			Status:       "IDLE",
		}
	}

	return &WorkerPool{
		config:        cfg,
		orchestrator:  orchestrator,
		request:       request,
		sinks:         sinks,
		fileQueue:     make(chan WorkItem, cfg.FileQueueSize),
		resultsChan:   make(chan WorkResult, cfg.WorkerCount*2),
		errorsChan:    make(chan WorkError, cfg.WorkerCount*2),
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger,
		workerMetrics: workerMetrics,
		metrics: PoolMetrics{
			StartTime:     time.Now(),
			WorkerMetrics: workerMetrics,
		},
	}
}

func (wp *WorkerPool) SetProgressDisplay(pd *ProgressDisplay) {
	wp.progressDisplay = pd
}

func (wp *WorkerPool) Start() error {
	wp.eg, wp.ctx = errgroup.WithContext(wp.ctx)

	wp.collectors.Add(2)
	go func() {
		defer wp.collectors.Done()
		for result := range wp.resultsChan {
			wp.handleResult(result)
		}
	}()
	go func() {
		defer wp.collectors.Done()
		for workError := range wp.errorsChan {
			wp.handleError(workError)
		}
	}()

	for i := 0; i < wp.config.WorkerCount; i++ {
		wp.eg.Go(func() error {
			wp.startWorker(i)
			return nil
		})
	}

	wp.mu.Lock()
	wp.metrics.ActiveWorkers = wp.config.WorkerCount
	wp.mu.Unlock()

	metrics.ActiveWorkers.Set(float64(wp.config.WorkerCount))

	return nil
}

func (wp *WorkerPool) SubmitFile(item WorkItem) error {
	wp.pending.Add(1)
	select {
	case wp.fileQueue <- item:
		wp.mu.Lock()
		wp.metrics.QueueDepth++
		metrics.QueueDepth.Set(float64(wp.metrics.QueueDepth))
		wp.mu.Unlock()
		return nil
	case <-wp.ctx.Done():
		wp.pending.Done()
		return wp.ctx.Err()
	}
}

// Stop waits until every submitted file, retries included, has finished or
// the pool's context is cancelled, then shuts the workers down.
func (wp *WorkerPool) Stop() error {
	drained := make(chan struct{})
	go func() {
		wp.pending.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-wp.ctx.Done():
	}

	wp.cancel()
	err := wp.eg.Wait()

	close(wp.resultsChan)
	close(wp.errorsChan)
	wp.collectors.Wait()

	metrics.ActiveWorkers.Set(0)

	if wp.progressDisplay != nil {
		wp.progressDisplay.Stop()
	}

	wp.logFinalMetrics()

	return err
}

func (wp *WorkerPool) GetMetrics() PoolMetrics {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	m := wp.metrics
	m.QueueDepth = len(wp.fileQueue)

	m.WorkerMetrics = make([]WorkerMetrics, len(wp.workerMetrics))
	copy(m.WorkerMetrics, wp.workerMetrics)

	return m
}

// Results returns the successful files sorted by path. Call after Stop.
func (wp *WorkerPool) Results() []WorkResult {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	out := append([]WorkResult(nil), wp.results...)
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out
}

// Failures returns the files that failed for good, sorted by path.
func (wp *WorkerPool) Failures() []WorkError {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	out := append([]WorkError(nil), wp.failures...)
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out
}

func (wp *WorkerPool) UpdateWorkerStatus(workerID int, currentFile, status string) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if workerID >= 0 && workerID < len(wp.workerMetrics) {
		wp.workerMetrics[workerID].CurrentFile = currentFile
		wp.workerMetrics[workerID].Status = status
		wp.workerMetrics[workerID].LastActivity = time.Now()

		if wp.progressDisplay != nil {
			wp.progressDisplay.UpdateWorker(workerID, currentFile, status)
		}
	}
}

func (wp *WorkerPool) handleResult(result WorkResult) {
	defer wp.pending.Done()

	wp.mu.Lock()
	defer wp.mu.Unlock()

	wp.results = append(wp.results, result)
	wp.metrics.TotalFilesProcessed++
	wp.metrics.TotalBins += result.BinCount
	wp.metrics.FailedSinkWrites += result.FailedSinks
	wp.metrics.QueueDepth--

	metrics.QueueDepth.Set(float64(wp.metrics.QueueDepth))

	if result.WorkerID >= 0 && result.WorkerID < len(wp.workerMetrics) {
		wm := &wp.workerMetrics[result.WorkerID]
		wm.FilesProcessed++
		wm.TotalBins += int64(result.BinCount)
		if result.Result != nil {
			wm.TotalSections += int64(result.Result.SectionsProcessed)
		}
		wm.TotalFileTime += result.Duration
		wm.LastActivity = time.Now()
		wm.CurrentFile = ""
		wm.Status = "IDLE"
		wm.AvgTimePerFile = wm.TotalFileTime / time.Duration(wm.FilesProcessed)

		if wp.progressDisplay != nil {
			wp.progressDisplay.UpdateWorker(result.WorkerID, "", "IDLE")
			wp.progressDisplay.UpdateWorkerStats(result.WorkerID, WorkerStats{
				FilesProcessed: wm.FilesProcessed,
				Sections:       int(wm.TotalSections),
				Bins:           int(wm.TotalBins),
			})
		}
	}
}

func (wp *WorkerPool) handleError(workError WorkError) {
	wp.mu.Lock()
	wp.metrics.TotalErrors++
	wp.metrics.QueueDepth--
	if workError.WorkerID >= 0 && workError.WorkerID < len(wp.workerMetrics) {
		wp.workerMetrics[workError.WorkerID].ErrorCount++
	}
	wp.mu.Unlock()

	if workError.Retry && workError.RetryCount < wp.config.MaxRetries {
		dirEntry, err := EntryFor(workError.FilePath)
		if err != nil {
			wp.logger.Error("Cannot retry file",
				zap.String("file_path", workError.FilePath),
				zap.Error(err),
				zap.String("action", "Check file exists and has read permissions"))
			wp.fail(workError)
			return
		}

		retryItem := WorkItem{
			FilePath:   workError.FilePath,
			FileInfo:   dirEntry,
			RetryCount: workError.RetryCount + 1,
		}

		wp.mu.Lock()
		wp.metrics.TotalRetries++
		wp.metrics.QueueDepth++
		wp.mu.Unlock()

		time.AfterFunc(wp.config.RetryDelay, func() {
			select {
			case wp.fileQueue <- retryItem:
			case <-wp.ctx.Done():
				wp.pending.Done()
			}
		})
		return
	}

	wp.logger.Error("File processing failed",
		zap.String("file_path", workError.FilePath),
		zap.Int("attempts", workError.RetryCount+1),
		zap.Error(workError.Error),
		zap.String("action", "Check the drawing has the requested layers and the request parameters are valid"))
	wp.fail(workError)
}

func (wp *WorkerPool) fail(workError WorkError) {
	defer wp.pending.Done()

	wp.mu.Lock()
	wp.failures = append(wp.failures, workError)
	wp.mu.Unlock()
}

func (wp *WorkerPool) logFinalMetrics() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.metrics.FailedSinkWrites > 0 {
		wp.logger.Warn("Some results were not delivered to every sink",
			zap.Int("failed_sink_writes", wp.metrics.FailedSinkWrites),
			zap.String("action", "Check RabbitMQ, QuestDB and InfluxDB connectivity"))
	}

	if len(wp.failures) > 0 {
		wp.logger.Error("Processing completed with errors",
			zap.Int("failed_files", len(wp.failures)),
			zap.Int("files_processed", wp.metrics.TotalFilesProcessed),
			zap.String("action", "Review error logs above for failed files"))
	}
}
