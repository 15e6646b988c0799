// Package server exposes the HTTP trigger and status API consumed by the
// dashboard and external webhooks.
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

	"github.com/mentionlab/visibility-engine/internal/apperr"
	"github.com/mentionlab/visibility-engine/internal/pipeline"
	"github.com/mentionlab/visibility-engine/internal/store"
)

// Server wires the orchestrator and store behind a chi router.
type Server struct {
	orch  *pipeline.Orchestrator
	store store.Store
	http  *http.Server
}

// New creates the HTTP server on the given port.
func New(orch *pipeline.Orchestrator, st store.Store, port int) *Server {
	s := &Server{orch: orch, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/webhook/pipeline", s.handleTrigger)
	r.Get("/businesses/{id}", s.handleGetBusiness)
	r.Get("/businesses/{id}/trend", s.handleTrend)
	r.Get("/businesses/{id}/fingerprints", s.handleFingerprints)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type triggerRequest struct {
	BusinessID    string `json:"business_id"`
	Caller        string `json:"caller"`
	Force         bool   `json:"force"`
	ManualPublish bool   `json:"manual_publish"`
}

// handleTrigger starts a pipeline run asynchronously. A business with a
// run already in flight is rejected with 409.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BusinessID == "" {
		writeError(w, http.StatusBadRequest, "business_id is required")
		return
	}
	if req.Caller == "" {
		req.Caller = "webhook"
	}

	if s.orch.Active(req.BusinessID) {
		writeError(w, http.StatusConflict, "pipeline run already active")
		return
	}

	if _, err := s.store.GetBusiness(r.Context(), req.BusinessID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "business not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	// The run outlives the request; it carries its own lifetime.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()

		_, err := s.orch.Run(ctx, req.BusinessID, pipeline.RunOptions{
			Caller:        req.Caller,
			Force:         req.Force,
			ManualPublish: req.ManualPublish,
		})
		if err != nil && !apperr.HasCode(err, apperr.CodeRunActive) {
			zap.L().Warn("webhook-triggered run failed",
				zap.String("business_id", req.BusinessID),
				zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"business_id": req.BusinessID,
		"status":      "started",
	})
}

func (s *Server) handleGetBusiness(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	business, err := s.store.GetBusiness(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "business not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, business)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	trend, err := s.orch.Trend(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "trend computation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"business_id": id,
		"trend":       string(trend),
	})
}

func (s *Server) handleFingerprints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	history, err := s.store.ListFingerprints(r.Context(), id, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
