package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ojparkinson/massbalance/internal/drawing"
	"github.com/ojparkinson/massbalance/internal/export"
	"github.com/ojparkinson/massbalance/internal/processing"
	"go.uber.org/zap"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid identifier")
)

var idPattern = regexp.MustCompile(`^[0-9a-f]{12}$`)

// Store keeps uploaded drawings and computed results on local disk.
type Store struct {
	uploadDir  string
	resultsDir string
	logger     *zap.Logger
}

func NewStore(uploadDir, resultsDir string, logger *zap.Logger) (*Store, error) {
	for _, dir := range []string{uploadDir, resultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w\nAction: Check UPLOAD_DIR and RESULTS_DIR are writable", dir, err)
		}
	}
	return &Store{uploadDir: uploadDir, resultsDir: resultsDir, logger: logger}, nil
}

type Upload struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
	Path     string `json:"-"`
}

// SaveUpload stores a drawing document under a fresh file id.
func (s *Store) SaveUpload(filename string, r io.Reader) (*Upload, error) {
	format, err := drawing.FormatFromPath(filename)
	if err != nil {
		return nil, err
	}

	fileID := processing.NewID()
	ext := strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.uploadDir, fileID+ext)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	return &Upload{FileID: fileID, Filename: filepath.Base(filename), FileType: string(format), Path: path}, nil
}

// UploadPath finds the stored drawing for fileID.
func (s *Store) UploadPath(fileID string) (string, error) {
	if !idPattern.MatchString(fileID) {
		return "", ErrInvalidID
	}
	matches, err := filepath.Glob(filepath.Join(s.uploadDir, fileID+".*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if drawing.Supported(m) {
			return m, nil
		}
	}
	return "", fmt.Errorf("file %s: %w", fileID, ErrNotFound)
}

func (s *Store) LoadDrawing(fileID string) (*drawing.Drawing, error) {
	path, err := s.UploadPath(fileID)
	if err != nil {
		return nil, err
	}
	return drawing.Load(path)
}

// DeleteUpload removes every stored file belonging to fileID.
func (s *Store) DeleteUpload(fileID string) error {
	if !idPattern.MatchString(fileID) {
		return ErrInvalidID
	}
	matches, err := filepath.Glob(filepath.Join(s.uploadDir, fileID+".*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ResultStore is the sink that keeps each result as CSV and JSON.
type ResultStore struct {
	store *Store
}

func (s *Store) Results() *ResultStore {
	return &ResultStore{store: s}
}

func (r *ResultStore) Name() string { return "results" }

func (r *ResultStore) Write(ctx context.Context, result *processing.FileResult) error {
	if !idPattern.MatchString(result.ResultID) {
		return fmt.Errorf("result id %q: %w", result.ResultID, ErrInvalidID)
	}

	csvPath := filepath.Join(r.store.resultsDir, result.ResultID+".csv")
	if err := writeFile(csvPath, func(w io.Writer) error { return export.WriteCSV(w, result.Bins()) }); err != nil {
		return err
	}

	jsonPath := filepath.Join(r.store.resultsDir, result.ResultID+".json")
	return writeFile(jsonPath, func(w io.Writer) error { return json.NewEncoder(w).Encode(result.Response()) })
}

func (s *Store) ResultCSVPath(resultID string) (string, error) {
	return s.resultPath(resultID, ".csv")
}

func (s *Store) LoadResponse(resultID string) (*processing.CalculationResponse, error) {
	path, err := s.resultPath(resultID, ".json")
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var resp processing.CalculationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("corrupt result %s: %w", resultID, err)
	}
	return &resp, nil
}

func (s *Store) resultPath(resultID, ext string) (string, error) {
	if !idPattern.MatchString(resultID) {
		return "", ErrInvalidID
	}
	path := filepath.Join(s.resultsDir, resultID+ext)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("result %s: %w", resultID, ErrNotFound)
		}
		return "", err
	}
	return path, nil
}

// CleanupOlderThan removes uploads and results last modified before maxAge ago.
func (s *Store) CleanupOlderThan(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, dir := range []string{s.uploadDir, s.resultsDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
					s.logger.Warn("Could not remove stale file",
						zap.String("file", entry.Name()),
						zap.Error(err))
					continue
				}
				removed++
			}
		}
	}
	return removed, nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
