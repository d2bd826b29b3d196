package processing

import (
	"fmt"
	"os"
	"time"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/drawing"
	"go.uber.org/zap"
)

type Directory struct {
	path             string
	lastScan         time.Time
	fileAgeThreshold time.Duration
	logger           *zap.Logger
}

func NewDir(path string, cfg *config.Config, logger *zap.Logger) *Directory {
	return &Directory{
		path:             path,
		fileAgeThreshold: cfg.FileAgeThreshold,
		logger:           logger,
	}
}

// WatchDir lists drawing documents old enough to be complete.
func (d *Directory) WatchDir() ([]os.DirEntry, error) {
	files, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("could not read input directory %s: %w\nAction: Check the directory exists and is readable", d.path, err)
	}

	filesToProcess := make([]os.DirEntry, 0)
	cutoff := time.Now().Add(-d.fileAgeThreshold)

	for _, file := range files {
		if file.IsDir() || !drawing.Supported(file.Name()) {
			continue
		}

		info, err := file.Info()
		if err != nil {
			d.logger.Warn("Could not get file info", zap.String("file", file.Name()), zap.Error(err))
			continue
		}

		if info.ModTime().Before(cutoff) {
			filesToProcess = append(filesToProcess, file)
		} else {
			d.logger.Debug("Skipping recent file (still being written?)",
				zap.Duration("age_threshold", d.fileAgeThreshold),
				zap.String("file", file.Name()))
		}
	}

	d.lastScan = time.Now()
	d.logger.Info("Files found for processing",
		zap.Int("ready_files", len(filesToProcess)),
		zap.Int("total_files", len(files)))
	return filesToProcess, nil
}

func (d *Directory) LastScan() time.Time {
	return d.lastScan
}
