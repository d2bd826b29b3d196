package worker

import (
	"os"
	"time"

	"github.com/ojparkinson/massbalance/internal/processing"
)

type WorkItem struct {
	FilePath   string
	FileInfo   os.DirEntry
	RetryCount int
}

type WorkResult struct {
	FilePath    string
	Result      *processing.FileResult
	BinCount    int
	FailedSinks int
	Duration    time.Duration
	WorkerID    int
}

type WorkError struct {
	FilePath   string
	Error      error
	Retry      bool
	WorkerID   int
	RetryCount int
	Timestamp  time.Time
}

type WorkerMetrics struct {
	WorkerID       int
	FilesProcessed int
	TotalSections  int64
	TotalBins      int64
	LastActivity   time.Time
	ErrorCount     int
	CurrentFile    string
	Status         string
	AvgTimePerFile time.Duration
	TotalFileTime  time.Duration
}
