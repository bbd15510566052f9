// Package server exposes the plant lifecycle pipeline over a REST API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/luminous-energy/plant-cli/internal/extract"
	"github.com/luminous-energy/plant-cli/internal/quote"
	"github.com/luminous-energy/plant-cli/internal/store"
)

// Extractor recognizes dates and fields in document bytes.
// *extract.Extractor satisfies it; tests substitute a stub.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType, titleHint string) (*extract.Result, error)
}

// Downloader fetches document content by Drive file ID.
type Downloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Server routes API requests onto the store and the extraction pipeline.
type Server struct {
	router    *chi.Mux
	store     store.Store
	extractor Extractor
	drive     Downloader
	quotes    *quote.Calculator
	jwtSecret []byte
}

// Option configures the server.
type Option func(*Server)

// WithExtractor enables the document extraction endpoints.
func WithExtractor(e Extractor) Option {
	return func(s *Server) { s.extractor = e }
}

// WithDrive enables extraction of documents stored in Drive.
func WithDrive(d Downloader) Option {
	return func(s *Server) { s.drive = d }
}

// WithQuoteCalculator enables the quote generation endpoint.
func WithQuoteCalculator(c *quote.Calculator) Option {
	return func(s *Server) { s.quotes = c }
}

// WithJWTSecret enables bearer auth on mutating routes.
func WithJWTSecret(secret string) Option {
	return func(s *Server) { s.jwtSecret = []byte(secret) }
}

// New builds the server and its route table.
func New(st store.Store, opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
		store:  st,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// Reads are open; writes require a bearer token.
		r.Get("/projects", s.handleListProjects)
		r.Get("/projects/export", s.handleExportProjects)
		r.Get("/projects/{id}", s.handleGetProject)
		r.Get("/projects/{id}/shares", s.handleListShares)
		r.Get("/projects/{id}/quotes", s.handleListQuotes)
		r.Get("/projects/{id}/stage/suggestion", s.handleSuggestStage)
		r.Get("/projects/{id}/revenue", s.handleEstimateRevenue)
		r.Get("/investors", s.handleListInvestors)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Post("/site/estimate", s.handleEstimateSite)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/projects", s.handleCreateProject)
			r.Put("/projects/{id}", s.handleUpdateProject)
			r.Delete("/projects/{id}", s.handleDeleteProject)
			r.Put("/projects/{id}/shares", s.handleSetShares)
			r.Post("/projects/{id}/quotes", s.handleGenerateQuote)
			r.Post("/projects/{id}/stage", s.handleApplyStage)
			r.Post("/projects/import", s.handleImportProjects)
			r.Post("/investors", s.handleCreateInvestor)
			r.Post("/projects/{id}/documents", s.handleUploadDocument)
			r.Post("/documents/{id}/extract", s.handleExtractDocument)
			r.Patch("/documents/{id}/status", s.handleUpdateDocumentStatus)
			r.Post("/extract", s.handleAdhocExtract)
		})
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server listening", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

// writeError maps an error onto a JSON error body. Store misses become 404s.
func writeError(w http.ResponseWriter, status int, err error) {
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// requestLogger logs each request with its status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			zap.L().Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
