package worker

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/ojparkinson/massbalance/internal/processing"
)

type ProgressDisplay struct {
	workerCount   int
	expectedFiles int
	workers       map[int]*WorkerStatus
	trackers      map[int]*progress.Tracker
	pw            progress.Writer
	mu            sync.RWMutex
	startTime     time.Time
}

type WorkerStatus struct {
	ID             int
	CurrentFile    string
	Status         string // "IDLE", "PROCESSING", "ERROR"
	FilesProcessed int
	Sections       int
	Bins           int
	SectionsDone   int
	SectionsTotal  int
}

type WorkerStats struct {
	FilesProcessed int
	Sections       int
	Bins           int
}

func NewProgressDisplay(workerCount, expectedFiles int, out io.Writer) *ProgressDisplay {
	workers := make(map[int]*WorkerStatus)
	trackers := make(map[int]*progress.Tracker)

	for i := 0; i < workerCount; i++ {
		workers[i] = &WorkerStatus{
			ID:     i,
			Status: "IDLE",
		}
	}

	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(25)
	pw.SetMessageLength(48)
	pw.SetNumTrackersExpected(workerCount)
	pw.SetSortBy(progress.SortByPercentDsc)
	pw.SetStyle(progress.StyleDefault)
	pw.SetTrackerPosition(progress.PositionRight)
	pw.SetUpdateFrequency(time.Millisecond * 500)
	pw.Style().Colors = progress.StyleColorsExample
	pw.Style().Options.PercentFormat = "%4.1f%%"
	pw.Style().Visibility.ETA = false
	pw.Style().Visibility.ETAOverall = false
	pw.Style().Visibility.Time = false
	pw.Style().Visibility.TrackerOverall = false
	pw.Style().Visibility.Value = true
	pw.Style().Visibility.Percentage = true

	return &ProgressDisplay{
		workerCount:   workerCount,
		expectedFiles: expectedFiles,
		workers:       workers,
		trackers:      trackers,
		pw:            pw,
		startTime:     time.Now(),
	}
}

func (pd *ProgressDisplay) Start() {
	pd.mu.Lock()
	for i := 0; i < pd.workerCount; i++ {
		tracker := &progress.Tracker{
			Message: fmt.Sprintf("Worker %d: Idle", i),
			Total:   int64(pd.expectedFiles),
			Units:   progress.UnitsDefault,
		}
		pd.trackers[i] = tracker
		pd.pw.AppendTracker(tracker)
	}
	pd.mu.Unlock()

	go pd.pw.Render()
}

func (pd *ProgressDisplay) UpdateWorker(workerID int, filename, status string) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if w, ok := pd.workers[workerID]; ok {
		w.CurrentFile = filename
		w.Status = status
	}

	pd.updateTrackerMessage(workerID)
}

func (pd *ProgressDisplay) UpdateWorkerStats(workerID int, stats WorkerStats) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if w, ok := pd.workers[workerID]; ok {
		w.FilesProcessed = stats.FilesProcessed
		w.Sections = stats.Sections
		w.Bins = stats.Bins
	}

	if tracker, ok := pd.trackers[workerID]; ok {
		tracker.SetValue(int64(stats.FilesProcessed))
	}

	pd.updateTrackerMessage(workerID)
}

// ForWorker returns the section progress callback for one worker.
func (pd *ProgressDisplay) ForWorker(workerID int) processing.ProgressCallback {
	return &workerProgress{pd: pd, workerID: workerID}
}

type workerProgress struct {
	pd       *ProgressDisplay
	workerID int
}

func (wp *workerProgress) OnFileStart(filename string, totalSections int) {
	wp.pd.sections(wp.workerID, func(w *WorkerStatus) {
		w.SectionsDone, w.SectionsTotal = 0, totalSections
	})
}

func (wp *workerProgress) OnSectionDone(filename string, sectionID string, bins int) {
	wp.pd.sections(wp.workerID, func(w *WorkerStatus) {
		w.SectionsDone++
	})
}

func (wp *workerProgress) OnFileComplete(filename string) {
	wp.pd.sections(wp.workerID, func(w *WorkerStatus) {
		w.SectionsDone = w.SectionsTotal
	})
}

func (pd *ProgressDisplay) sections(workerID int, update func(w *WorkerStatus)) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if w, ok := pd.workers[workerID]; ok {
		update(w)
		pd.updateTrackerMessage(workerID)
	}
}

func (pd *ProgressDisplay) updateTrackerMessage(workerID int) {
	w := pd.workers[workerID]
	tracker := pd.trackers[workerID]

	if tracker == nil {
		return
	}

	statusColor := ""
	switch w.Status {
	case "PROCESSING":
		statusColor = "PROC"
	case "ERROR":
		statusColor = "ERR "
	case "IDLE":
		statusColor = "IDLE"
	default:
		statusColor = "    "
	}

	filename := "waiting..."
	if w.CurrentFile != "" {
		filename = w.CurrentFile
		if len(filename) > 24 {
			filename = "..." + filename[len(filename)-21:]
		}
	}

	// Format: W-NN [STATUS] filename | sections | totals
	msg := fmt.Sprintf("W-%02d [%s] %-24s | Sec:%2d/%-2d Files:%2d Bins:%6d",
		workerID,
		statusColor,
		filename,
		w.SectionsDone,
		w.SectionsTotal,
		w.FilesProcessed,
		w.Bins)

	tracker.UpdateMessage(msg)
}

func (pd *ProgressDisplay) Stop() {
	pd.mu.Lock()
	for _, tracker := range pd.trackers {
		if tracker != nil {
			tracker.MarkAsDone()
		}
	}
	pd.mu.Unlock()

	timeout := time.After(2 * time.Second)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			pd.pw.Stop()
			return
		case <-ticker.C:
			if !pd.pw.IsRenderInProgress() {
				pd.pw.Stop()
				return
			}
		}
	}
}
