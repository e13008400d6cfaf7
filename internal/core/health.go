package core

import "net/http"

// HandleHealth serves GET /health. It returns 200 with a minimal body when
// the process is up; deeper dependency checks belong to deployment probes,
// not this endpoint.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
