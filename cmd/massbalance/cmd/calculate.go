package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/dashboard"
	"github.com/ojparkinson/massbalance/internal/export"
	"github.com/ojparkinson/massbalance/internal/processing"
	"github.com/ojparkinson/massbalance/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	requestPath string
	outDir      string
	quiet       bool
)

var calculateCmd = &cobra.Command{
	Use:   "calculate [paths...]",
	Short: "Compute the mass balance of drawing documents",
	Long: `Compute every section of the request against each drawing and write one CSV per drawing.

Paths may be drawing documents or directories. Documents in a directory are only picked up
once they are older than FILE_AGE_THRESHOLD, so files still being exported are skipped.
The command exits with status 1 when any drawing fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCalculate(cmd.Context(), args)
	},
}

func init() {
	calculateCmd.Flags().StringVarP(&requestPath, "request", "r", "", "calculation request (.json, .yaml or .yml)")
	calculateCmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory for the CSV files")
	calculateCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable the progress display")
	_ = calculateCmd.MarkFlagRequired("request")
}

func runCalculate(ctx context.Context, paths []string) error {
	startTime := time.Now()

	req, err := config.LoadRequest(requestPath)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, err := discoverFiles(paths)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no drawing documents found in %v\nAction: Pass .json or .yaml drawings, or wait FILE_AGE_THRESHOLD for fresh exports", paths)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outDir, err)
	}

	orchestrator := processing.NewOrchestrator(cfg, logger)
	sinks := []processing.Sink{&csvSink{dir: outDir, logger: logger}}
	pool := worker.NewWorkerPool(ctx, cfg, orchestrator, req, sinks, logger)

	var progress *worker.ProgressDisplay
	if !quiet {
		progress = worker.NewProgressDisplay(cfg.WorkerCount, len(items), os.Stdout)
		pool.SetProgressDisplay(progress)
		progress.Start()
	}

	if err := pool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w\nAction: Check system resources and configuration", err)
	}
	for _, item := range items {
		if err := pool.SubmitFile(item); err != nil {
			logger.Error("Failed to queue drawing",
				zap.String("file", item.FilePath),
				zap.Error(err))
		}
	}
	if err := pool.Stop(); err != nil {
		logger.Error("Error stopping worker pool", zap.Error(err))
	}
	if progress != nil {
		progress.Stop()
	}

	var results []*processing.FileResult
	for _, r := range pool.Results() {
		results = append(results, r.Result)
	}
	var failures []dashboard.Failure
	for _, f := range pool.Failures() {
		failures = append(failures, dashboard.Failure{File: filepath.Base(f.FilePath), Err: f.Error})
	}

	dashboard.RenderResults(os.Stdout, results, failures, quiet)
	if !quiet {
		for _, r := range results {
			dashboard.RenderSections(os.Stdout, r, quiet)
		}
		dashboard.RenderWorkers(os.Stdout, pool.GetMetrics(), quiet)
	}

	logger.Info("Processing completed",
		zap.Int("files", len(results)),
		zap.Int("failed", len(failures)),
		zap.Duration("duration", time.Since(startTime)))

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d drawing(s) failed", len(failures), len(items))
	}
	return nil
}

// discoverFiles expands directories into their ready drawing documents.
// Files named explicitly are always queued.
func discoverFiles(paths []string) ([]worker.WorkItem, error) {
	var items []worker.WorkItem
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w\nAction: Check the path exists", path, err)
		}

		if !info.IsDir() {
			entry, err := worker.EntryFor(path)
			if err != nil {
				return nil, err
			}
			items = append(items, worker.WorkItem{FilePath: path, FileInfo: entry})
			continue
		}

		entries, err := processing.NewDir(path, cfg, logger).WatchDir()
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			items = append(items, worker.WorkItem{FilePath: filepath.Join(path, entry.Name()), FileInfo: entry})
		}
	}
	return items, nil
}

// csvSink writes <drawing>.csv next to the other results of the run.
type csvSink struct {
	dir    string
	logger *zap.Logger
}

func (s *csvSink) Name() string { return "csv" }

func (s *csvSink) Write(ctx context.Context, result *processing.FileResult) error {
	path := filepath.Join(s.dir, result.FileID+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.WriteCSV(f, result.Bins()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	s.logger.Debug("CSV written", zap.String("path", path), zap.Int("bins", result.BinCount))
	return nil
}
