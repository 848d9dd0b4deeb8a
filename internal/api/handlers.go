// Package api exposes run submission and status over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/maltedev/encarte-scraper/internal/jobs"
	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/queue"
	"github.com/maltedev/encarte-scraper/internal/retailers"
)

// BacklogFunc reports outbox events waiting and dead-lettered.
type BacklogFunc func(ctx context.Context) (pending, deadLetter int64, err error)

// ArtifactLister is implemented by *database.CatalogRepository.
type ArtifactLister interface {
	ListArtifacts(ctx context.Context, runID string) ([]*models.Artifact, error)
}

type Handlers struct {
	jobs      *jobs.Manager
	backlog   BacklogFunc
	artifacts ArtifactLister
	logger    *slog.Logger
}

type Option func(*Handlers)

// WithBacklog adds the outbox backlog to /health.
func WithBacklog(fn BacklogFunc) Option {
	return func(h *Handlers) { h.backlog = fn }
}

// WithArtifacts serves catalogued artifacts per run.
func WithArtifacts(l ArtifactLister) Option {
	return func(h *Handlers) { h.artifacts = l }
}

func NewHandlers(jobs *jobs.Manager, logger *slog.Logger, opts ...Option) *Handlers {
	h := &Handlers{
		jobs:   jobs,
		logger: logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/retailers", h.ListRetailers)
		r.Post("/runs", h.CreateRun)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{runID}", h.GetRun)
		r.Get("/runs/{runID}/artifacts", h.ListRunArtifacts)
	})

	return r
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status": "ok",
		"queue":  h.jobs.Pending(),
	}
	status := http.StatusOK

	if h.backlog != nil {
		pending, dead, err := h.backlog(r.Context())
		if err != nil {
			h.logger.Warn("outbox backlog unavailable", "error", err)
			health["status"] = "degraded"
			health["message"] = "catalog unreachable"
		} else {
			health["outbox"] = map[string]int64{"pending": pending, "dead_letter": dead}
			if pending > 1000 {
				health["status"] = "warning"
				health["message"] = "high number of pending outbox events"
			}
			if dead > 100 {
				health["status"] = "error"
				health["message"] = "high number of dead letter events"
				status = http.StatusServiceUnavailable
			}
		}
	}

	h.respondJSON(w, status, health)
}

type RetailerResponse struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	BaseURL string `json:"base_url"`
}

func (h *Handlers) ListRetailers(w http.ResponseWriter, r *http.Request) {
	out := make([]RetailerResponse, 0)
	for _, key := range retailers.Names() {
		ret, err := retailers.Get(key)
		if err != nil {
			continue
		}
		info := ret.Info()
		out = append(out, RetailerResponse{Key: key, Name: info.Name, Slug: info.Slug, BaseURL: info.BaseURL})
	}
	h.respondJSON(w, http.StatusOK, out)
}

type CreateRunRequest struct {
	Retailer string `json:"retailer"`
}

type CreateRunResponse struct {
	RunID    string `json:"run_id"`
	Retailer string `json:"retailer"`
	Status   string `json:"status"`
}

func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Retailer == "" {
		h.respondError(w, http.StatusBadRequest, "retailer is required")
		return
	}
	if _, err := retailers.Get(req.Retailer); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobs.Submit(retailers.Key(req.Retailer))
	switch {
	case errors.Is(err, queue.ErrDuplicate):
		h.respondError(w, http.StatusConflict, "retailer already queued")
		return
	case errors.Is(err, queue.ErrQueueClosed):
		h.respondError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	case err != nil:
		h.logger.Error("failed to queue run", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to queue run")
		return
	}

	h.respondJSON(w, http.StatusAccepted, CreateRunResponse{
		RunID:    job.ID,
		Retailer: job.Retailer,
		Status:   job.Status,
	})
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.List())
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(chi.URLParam(r, "runID"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

// ListRunArtifacts returns the catalog rows of a finished run.
func (h *Handlers) ListRunArtifacts(w http.ResponseWriter, r *http.Request) {
	if h.artifacts == nil {
		h.respondError(w, http.StatusNotFound, "catalog is disabled")
		return
	}

	job, err := h.jobs.Get(chi.URLParam(r, "runID"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if job.Report == nil {
		h.respondError(w, http.StatusConflict, "run has not finished")
		return
	}

	artifacts, err := h.artifacts.ListArtifacts(r.Context(), job.Report.ID)
	if err != nil {
		h.logger.Error("failed to list artifacts", "run_id", job.Report.ID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list artifacts")
		return
	}
	if artifacts == nil {
		artifacts = make([]*models.Artifact, 0)
	}
	h.respondJSON(w, http.StatusOK, artifacts)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
