package api

import (
	"net/http"

	"tagvis/internal/version"
)

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)

	// Tree
	s.router.HandleFunc("/api/tree", s.handleTree)        // GET, ?since=N long-polls
	s.router.HandleFunc("/api/tree.svg", s.handleTreeSVG) // GET
	s.router.HandleFunc("/api/tree.txt", s.handleTreeText)
	s.router.HandleFunc("/api/root", s.handleRoot) // POST {"tag": "#x"}

	// Queries against the index
	s.router.HandleFunc("/api/files", s.handleFiles) // GET ?tag=#a&tag=#b
	s.router.HandleFunc("/api/query", s.handleQuery) // GET ?q=..., POST text
	s.router.HandleFunc("/api/index", s.handleIndexStats)

	s.router.Handle("/metrics", s.deps.Metrics.Handler())

	s.router.HandleFunc("/", s.handleIndex)
}

// handleIndex lists the endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	response := map[string]interface{}{
		"name":    "tagvis HTTP API",
		"version": version.Version,
		"endpoints": []string{
			"GET /health - Health check",
			"GET /api/tree - Latest tag tree snapshot (?since=N waits for a newer one)",
			"GET /api/tree.svg - Latest tag tree as a sunburst",
			"GET /api/tree.txt - Latest tag tree as text",
			"POST /api/root - Re-root the tree at a tag",
			"GET /api/files?tag=... - Files carrying every given tag",
			"GET /api/query?q=... - Run a raw aggregation query",
			"GET /api/index - Index statistics",
			"GET /metrics - Prometheus metrics",
		},
	}

	WriteJSON(w, response, http.StatusOK)
}
