package api

import (
	"net/http"
	"time"

	"tagvis/internal/version"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Epoch     uint64    `json:"epoch"`
	Renders   uint64    `json:"renders"`
}

// handleHealth responds to health check requests (simple liveness check)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	_, renders := s.deps.Latest.Get()
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Epoch:     s.deps.Engine.Epoch(),
		Renders:   renders,
	}

	WriteJSON(w, response, http.StatusOK)
}
