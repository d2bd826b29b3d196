package processing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ojparkinson/massbalance/internal/config"
	"go.uber.org/zap"
)

func TestWatchDirReadyFiles(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-time.Hour)

	for _, name := range []string{"a.json", "b.yaml", "notes.txt", "c.dwg"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "fresh.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDir(dir, &config.Config{FileAgeThreshold: time.Minute}, zap.NewNop())
	files, err := d.WatchDir()
	if err != nil {
		t.Fatalf("WatchDir returned error: %v", err)
	}

	var names []string
	for _, f := range files {
		names = append(names, f.Name())
	}
	if len(names) != 2 || names[0] != "a.json" || names[1] != "b.yaml" {
		t.Fatalf("unexpected ready files %v", names)
	}
}

func TestWatchDirMissing(t *testing.T) {
	d := NewDir(filepath.Join(t.TempDir(), "missing"), &config.Config{}, zap.NewNop())
	if _, err := d.WatchDir(); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}
