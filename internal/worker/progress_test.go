package worker

import (
	"io"
	"strings"
	"testing"
)

func TestProgressDisplayTracksSections(t *testing.T) {
	pd := NewProgressDisplay(2, 3, io.Discard)
	pd.Start()
	defer pd.Stop()

	pd.UpdateWorker(1, "trecho-01.json", "PROCESSING")
	cb := pd.ForWorker(1)
	cb.OnFileStart("trecho-01.json", 4)
	cb.OnSectionDone("trecho-01.json", "A", 3)
	cb.OnSectionDone("trecho-01.json", "B", 3)

	pd.mu.RLock()
	w := *pd.workers[1]
	msg := pd.trackers[1].Message
	pd.mu.RUnlock()

	if w.SectionsDone != 2 || w.SectionsTotal != 4 {
		t.Fatalf("sections = %d/%d, want 2/4", w.SectionsDone, w.SectionsTotal)
	}
	if !strings.Contains(msg, "[PROC]") || !strings.Contains(msg, "Sec: 2/4") {
		t.Fatalf("unexpected tracker message %q", msg)
	}

	cb.OnFileComplete("trecho-01.json")
	pd.UpdateWorkerStats(1, WorkerStats{FilesProcessed: 1, Sections: 4, Bins: 12})

	pd.mu.RLock()
	defer pd.mu.RUnlock()
	if pd.workers[1].SectionsDone != 4 || pd.workers[1].Bins != 12 {
		t.Fatalf("unexpected worker state %+v", *pd.workers[1])
	}
	if pd.trackers[1].Value() != 1 {
		t.Fatalf("tracker value = %d, want 1", pd.trackers[1].Value())
	}
}
