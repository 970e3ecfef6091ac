package server

import (
	"encoding/json"
	"net/http"

	"github.com/b0ase/path402/apps/zanomcp/internal/amount"
)

func (s *Server) registerRoutes(mux *http.ServeMux, metrics http.Handler) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/assets", s.handleAssets)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "ok",
		"version":   s.gateway.Version(),
		"uptime_ms": s.gateway.Uptime().Milliseconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.gateway.Status())
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	assets := s.gateway.Assets()
	if assets == nil {
		assets = []amount.Asset{}
	}
	writeJSON(w, assets)
}
