package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/drawing"
	"github.com/ojparkinson/massbalance/internal/geometry"
	"github.com/ojparkinson/massbalance/internal/processing"
	"go.uber.org/zap"
)

const drawingJSON = `{
  "name": "trecho",
  "layers": {
    "GREIDE": [[[0, 10], [150, 7], [300, 4]]],
    "TERRENO": [[[0, 7], [300, 7]]]
  }
}`

func f(v float64) *float64 { return &v }

func testSetup(t *testing.T) (*config.Config, *processing.Orchestrator, *config.CalculationRequest) {
	t.Helper()
	cfg := &config.Config{
		WorkerCount:        2,
		FileQueueSize:      10,
		WorkerTimeout:      time.Minute,
		MaxRetries:         2,
		RetryDelay:         10 * time.Millisecond,
		FileProcessTimeout: time.Minute,
		SectionWorkers:     2,
		MergeTolerance:     1e-3,
		CrossingEpsilon:    1e-9,
	}
	req := &config.CalculationRequest{
		GreideLayer:  "GREIDE",
		TerrenoLayer: "TERRENO",
		Sections: []config.SectionRequest{{
			ID: "A", XStart: f(0), XEnd: f(300), InitialStation: f(1000),
			StationInterval: f(20), BinWidth: f(100), HScale: f(1), VScale: f(1),
		}},
	}
	return cfg, processing.NewOrchestrator(cfg, zap.NewNop()), req
}

type recordingSink struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Write(ctx context.Context, result *processing.FileResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, result.FileID)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func submit(t *testing.T, pool *WorkerPool, path string) {
	t.Helper()
	entry, err := EntryFor(path)
	if err != nil {
		t.Fatalf("EntryFor(%s): %v", path, err)
	}
	if err := pool.SubmitFile(WorkItem{FilePath: path, FileInfo: entry}); err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
}

func TestWorkerPoolProcessesFiles(t *testing.T) {
	cfg, orch, req := testSetup(t)
	dir := t.TempDir()
	sink := &recordingSink{}

	pool := NewWorkerPool(context.Background(), cfg, orch, req, []processing.Sink{sink}, zap.NewNop())
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	submit(t, pool, writeFile(t, dir, "a.json", drawingJSON))
	submit(t, pool, writeFile(t, dir, "b.json", drawingJSON))
	submit(t, pool, writeFile(t, dir, "broken.json", `{"layers": {"GREIDE": [[[0]]]}}`))

	if err := pool.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	results := pool.Results()
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Result.FileID != "a" || results[1].Result.FileID != "b" {
		t.Fatalf("unexpected file ids %q %q", results[0].Result.FileID, results[1].Result.FileID)
	}
	if results[0].BinCount != 3 {
		t.Fatalf("BinCount = %d, want 3", results[0].BinCount)
	}
	if len(sink.ids) != 2 {
		t.Fatalf("sink saw %d results, want 2", len(sink.ids))
	}

	failures := pool.Failures()
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(failures))
	}
	if !errors.Is(failures[0].Error, drawing.ErrInvalidDocument) {
		t.Fatalf("failure error = %v, want invalid document", failures[0].Error)
	}
	if failures[0].Retry {
		t.Fatal("invalid document must not be retried")
	}

	m := pool.GetMetrics()
	if m.TotalFilesProcessed != 2 || m.TotalErrors != 1 || m.TotalRetries != 0 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestWorkerPoolGeometryErrorNotRetried(t *testing.T) {
	cfg, orch, req := testSetup(t)
	req.TerrenoLayer = "MISSING"

	pool := NewWorkerPool(context.Background(), cfg, orch, req, nil, zap.NewNop())
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	submit(t, pool, writeFile(t, t.TempDir(), "a.json", drawingJSON))
	if err := pool.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	failures := pool.Failures()
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(failures))
	}
	var geomErr *geometry.GeometryError
	if !errors.As(failures[0].Error, &geomErr) {
		t.Fatalf("failure error = %v, want GeometryError", failures[0].Error)
	}
	if pool.GetMetrics().TotalRetries != 0 {
		t.Fatal("geometry errors must not be retried")
	}
}

func TestWorkerPoolVanishedFile(t *testing.T) {
	cfg, orch, req := testSetup(t)
	path := writeFile(t, t.TempDir(), "gone.json", drawingJSON)
	entry, err := EntryFor(path)
	if err != nil {
		t.Fatalf("EntryFor: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	pool := NewWorkerPool(context.Background(), cfg, orch, req, nil, zap.NewNop())
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pool.SubmitFile(WorkItem{FilePath: path, FileInfo: entry}); err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
	if err := pool.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	failures := pool.Failures()
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(failures))
	}
	if !failures[0].Retry {
		t.Fatal("a missing file is an I/O failure and should be marked retryable")
	}
}

func TestWorkerPoolCancelled(t *testing.T) {
	cfg, orch, req := testSetup(t)
	ctx, cancel := context.WithCancel(context.Background())

	pool := NewWorkerPool(ctx, cfg, orch, req, nil, zap.NewNop())
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	// The queue has room, so the item may be accepted or refused.
	_ = pool.SubmitFile(WorkItem{FilePath: "x.json"})

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after cancellation")
	}
}

func TestWorkerPoolRetriesUpToMaxRetries(t *testing.T) {
	cfg, orch, req := testSetup(t)
	cfg.MaxRetries = 5
	cfg.RetryDelay = time.Millisecond

	pool := NewWorkerPool(context.Background(), cfg, orch, req, nil, zap.NewNop())
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// A directory passes EntryFor on every retry but can never be read as a drawing.
	dir := filepath.Join(t.TempDir(), "folder.json")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	submit(t, pool, dir)
	if err := pool.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	failures := pool.Failures()
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(failures))
	}
	if failures[0].RetryCount != 5 {
		t.Fatalf("final attempt RetryCount = %d, want 5", failures[0].RetryCount)
	}
	if got := pool.GetMetrics().TotalRetries; got != 5 {
		t.Fatalf("TotalRetries = %d, want 5", got)
	}
}

func TestWorkerPoolOutlivesWorkerTimeout(t *testing.T) {
	cfg, orch, req := testSetup(t)
	cfg.WorkerTimeout = 500 * time.Millisecond

	pool := NewWorkerPool(context.Background(), cfg, orch, req, nil, zap.NewNop())
	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(2 * cfg.WorkerTimeout)
	submit(t, pool, writeFile(t, t.TempDir(), "late.json", drawingJSON))

	done := make(chan error, 1)
	go func() { done <- pool.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked after WorkerTimeout elapsed")
	}

	if results := pool.Results(); len(results) != 1 {
		t.Fatalf("got %d results, want 1 (failures: %v)", len(results), pool.Failures())
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"io error", os.ErrPermission, true},
		{"cancelled", context.Canceled, false},
		{"cad file", drawing.ErrCADFile, false},
		{"geometry", &geometry.GeometryError{Layer: "GREIDE", Reason: "no points"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.err); got != tt.want {
				t.Fatalf("shouldRetry = %v, want %v", got, tt.want)
			}
		})
	}
}
