package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/inference"
	"github.com/ojparkinson/massbalance/internal/processing"
	"github.com/ojparkinson/massbalance/internal/storage"
	"go.uber.org/zap"
)

const maxUploadSize = 64 << 20

type Server struct {
	httpServer  *http.Server
	store       *storage.Store
	calculator  *processing.Calculator
	analyzer    *inference.Analyzer
	hub         *Hub
	corsOrigins []string
	logger      *zap.Logger
}

func NewServer(cfg *config.Config, store *storage.Store, calculator *processing.Calculator, analyzer *inference.Analyzer, hub *Hub, logger *zap.Logger) *Server {
	server := &Server{
		store:       store,
		calculator:  calculator,
		analyzer:    analyzer,
		hub:         hub,
		corsOrigins: cfg.CORSOrigins,
		logger:      logger.With(zap.String("component", "api")),
	}

	server.httpServer = &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           server.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server
}

func (s *Server) Start() error {
	s.logger.Info("Starting api server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w\nAction: Check API_ADDR is not in use", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down api server")
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/analyze/{fileId}", s.handleAnalyze)
	mux.HandleFunc("POST /api/calculate/{fileId}", s.handleCalculate)
	mux.HandleFunc("GET /api/results/{resultId}", s.handleGetResultCSV)
	mux.HandleFunc("GET /api/results/{resultId}/geojson", s.handleGetResultGeoJSON)
	mux.HandleFunc("DELETE /api/cleanup/{fileId}", s.handleCleanup)
	mux.HandleFunc("GET /ws", s.hub.ServeWS)

	return s.RecoveryMiddleware(s.CORSMiddleware(mux))
}

func (s *Server) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				s.logger.Error("Panic while serving request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", err),
					zap.Stack("stack"))
				respondError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware answers preflight requests and tags responses for the
// configured origins. A "*" entry allows any origin.
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	allowAll := slices.Contains(s.corsOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || slices.Contains(s.corsOrigins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
