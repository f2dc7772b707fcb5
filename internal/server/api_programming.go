package server

import (
	"encoding/json"
	"net/http"

	"chanplan/internal/models"
	"chanplan/internal/scoring"
)

// handleProgrammingRun launches a generation job and returns it with 202.
// The caller follows progress over the jobs feed.
func (s *Server) handleProgrammingRun(w http.ResponseWriter, r *http.Request) {
	var req models.ProgrammingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	job, err := s.StartRun(req)
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// handleProgrammingScore scores a caller-supplied lineup in place, without
// generating anything. Items keep their submitted order and start times.
func (s *Server) handleProgrammingScore(w http.ResponseWriter, r *http.Request) {
	var req models.ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := s.store.GetProfile(req.ProfileID)
	if err != nil {
		writeKindError(w, err)
		return
	}
	result := scoring.NewEngine().EvaluatePlaylist(profile, req.Items, s.loc)
	writeJSON(w, http.StatusOK, result)
}
