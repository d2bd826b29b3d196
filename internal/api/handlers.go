package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/drawing"
	"github.com/ojparkinson/massbalance/internal/export"
	"github.com/ojparkinson/massbalance/internal/geometry"
	"github.com/ojparkinson/massbalance/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /api/upload
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Expected a multipart form with a 'file' field")
		return
	}
	defer file.Close()

	upload, err := s.store.SaveUpload(header.Filename, file)
	if err != nil {
		if errors.Is(err, drawing.ErrCADFile) || errors.Is(err, drawing.ErrUnsupportedFormat) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("Failed to store upload", zap.String("filename", header.Filename), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	// Reject documents that do not decode now rather than on first use.
	if _, err := s.store.LoadDrawing(upload.FileID); err != nil {
		if delErr := s.store.DeleteUpload(upload.FileID); delErr != nil {
			s.logger.Warn("Failed to remove rejected upload", zap.String("file_id", upload.FileID), zap.Error(delErr))
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("Drawing uploaded",
		zap.String("file_id", upload.FileID),
		zap.String("filename", upload.Filename))
	respondJSON(w, http.StatusOK, upload)
}

// /api/analyze/0123456789ab
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileId")
	d, err := s.store.LoadDrawing(fileID)
	if err != nil {
		s.respondStoreError(w, err, "Failed to load drawing")
		return
	}

	respondJSON(w, http.StatusOK, s.analyzer.Analyze(fileID, d))
}

// /api/calculate/0123456789ab
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileId")
	yamlBody := strings.Contains(r.Header.Get("Content-Type"), "yaml")

	req, err := config.DecodeRequest(r.Body, yamlBody)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.calculator.Calculate(r.Context(), fileID, req)
	if err != nil {
		var geomErr *geometry.GeometryError
		switch {
		case errors.Is(err, config.ErrInvalidRequest):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &geomErr), errors.Is(err, drawing.ErrInvalidDocument):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.respondStoreError(w, err, "Calculation failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, result.Response())
}

// /api/results/ba9876543210
func (s *Server) handleGetResultCSV(w http.ResponseWriter, r *http.Request) {
	resultID := r.PathValue("resultId")
	path, err := s.store.ResultCSVPath(resultID)
	if err != nil {
		s.respondStoreError(w, err, "Failed to fetch result")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="balanco_massa_%s.csv"`, resultID))
	http.ServeFile(w, r, path)
}

// /api/results/ba9876543210/geojson
func (s *Server) handleGetResultGeoJSON(w http.ResponseWriter, r *http.Request) {
	resultID := r.PathValue("resultId")
	resp, err := s.store.LoadResponse(resultID)
	if err != nil {
		s.respondStoreError(w, err, "Failed to fetch result")
		return
	}

	col := export.ConvertToGeoJSON(resp.ResultID, resp.Profiles, export.ConversionOptions{})
	respondGzipJSON(w, http.StatusOK, col)
}

// /api/cleanup/0123456789ab
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileId")
	if err := s.store.DeleteUpload(fileID); err != nil {
		s.respondStoreError(w, err, "Failed to remove file")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, storage.ErrInvalidID):
		respondError(w, http.StatusBadRequest, "Invalid identifier")
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, drawing.ErrInvalidDocument):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error(message, zap.Error(err))
		respondError(w, http.StatusInternalServerError, message)
	}
}
