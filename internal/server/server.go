// Package server exposes the orchestrator to a browser front-end over
// a JSON HTTP API plus a WebSocket that streams instance snapshots.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"PolyChat/internal/chat"
	"PolyChat/internal/openrouter"
	"PolyChat/internal/orchestrator"
)

// Catalog lists the models available to bind.
type Catalog interface {
	ListModels(ctx context.Context) ([]chat.Model, error)
}

// Server serves the browser-facing API.
type Server struct {
	orch    *orchestrator.Orchestrator
	catalog Catalog
	logger  *slog.Logger
}

// New creates a server around an orchestrator and a model catalog.
func New(orch *orchestrator.Orchestrator, catalog Catalog, logger *slog.Logger) *Server {
	return &Server{orch: orch, catalog: catalog, logger: logger}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/models", s.handleListModels)
	mux.HandleFunc("GET /api/instances", s.handleListInstances)
	mux.HandleFunc("POST /api/instances", s.handleCreateInstance)
	mux.HandleFunc("DELETE /api/instances/{id}", s.handleRemoveInstance)
	mux.HandleFunc("POST /api/instances/{id}/model", s.handleBindModel)
	mux.HandleFunc("POST /api/instances/{id}/send", s.handleSend)
	mux.HandleFunc("POST /api/autochat", s.handleAutoChat)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListModels returns the free-tier catalog, or the whole catalog
// with ?all=1. Catalog failures are banner-level: they surface as an
// HTTP error and are never stored per-instance.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.catalog.ListModels(r.Context())
	if err != nil {
		s.logger.Error("failed to fetch model catalog", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if r.URL.Query().Get("all") == "" {
		models = openrouter.FreeModels(models)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": models})
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"instances": s.orch.Instances()})
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.orch.Create()
	if !ok {
		writeError(w, http.StatusConflict, "instance limit reached")
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

func (s *Server) handleRemoveInstance(w http.ResponseWriter, r *http.Request) {
	if !s.orch.Remove(r.PathValue("id")) {
		writeError(w, http.StatusConflict, "cannot remove instance")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBindModel(w http.ResponseWriter, r *http.Request) {
	var model chat.Model
	if err := json.NewDecoder(r.Body).Decode(&model); err != nil || model.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid model payload")
		return
	}

	if !s.orch.BindModel(r.PathValue("id"), model) {
		writeError(w, http.StatusNotFound, "instance not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid send payload")
		return
	}

	id := r.PathValue("id")
	if _, ok := s.orch.Get(id); !ok {
		writeError(w, http.StatusNotFound, "instance not found")
		return
	}

	// The pipeline blocks through playback; the browser gets its state
	// over the websocket, so the send runs detached.
	go s.orch.Send(context.Background(), id, req.Text)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAutoChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
		DelayMS int  `json:"delay_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid autochat payload")
		return
	}

	s.orch.SetAutoChat(req.Enabled, time.Duration(req.DelayMS)*time.Millisecond)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
