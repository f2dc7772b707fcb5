package server

import (
	"net/http"

	"chanplan/internal/version"
)

// handleVersion reports the running build and, once the release poll has
// run, the newest published release.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	info := version.Info{Current: "unknown"}
	if s.version != nil {
		info = s.version.Info()
	}
	writeJSON(w, http.StatusOK, info)
}
