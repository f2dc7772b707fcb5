package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleListJobs returns the coordinator's snapshot: active jobs plus the
// retained terminal ones, newest first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, s.jobs.ListRecent(limit))
}

// handleClearJobs drops finished jobs from the live list. History rows
// stay.
func (s *Server) handleClearJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"removed": s.jobs.ClearTerminal()})
}

// handleJobHistory lists persisted terminal jobs, newest first. The live
// list forgets jobs on restart; this one survives.
func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.store.ListJobHistory(limit)
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// recordJob flushes a terminal job snapshot to durable history.
func (s *Server) recordJob(id string) {
	job, ok := s.jobs.Get(id)
	if !ok || !job.Status.Terminal() {
		return
	}
	if err := s.store.RecordJob(job); err != nil {
		s.log.Warn().Err(err).Str("job", id).Msg("recording job history")
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.jobs.Get(id); !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !s.jobs.Cancel(id) {
		writeError(w, http.StatusConflict, "job already finished")
		return
	}
	s.recordJob(id)
	job, _ := s.jobs.Get(id)
	writeJSON(w, http.StatusOK, job)
}
