package api

import (
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealth handles GET /healthz. Prometheus metrics live on /metrics.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// handleStats handles GET /stats requests.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.GetStats(r.Context()))
}
