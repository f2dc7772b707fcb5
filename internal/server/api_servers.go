package server

import (
	"context"
	"encoding/json"
	"net/http"

	"chanplan/internal/catalog"
	"chanplan/internal/jobs"
	"chanplan/internal/mediautil"
	"chanplan/internal/models"
)

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.store.ListServers()
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, servers)
}

func (s *Server) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var input models.MediaServerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	srv := input.ToServer()
	if err := srv.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.CreateServer(srv); err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, srv)
}

func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	srv, err := s.store.GetServer(id)
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var input models.MediaServerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	srv := input.ToServer()
	srv.ID = id
	if err := srv.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.UpdateServer(srv); err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteServer(id); err != nil {
		writeKindError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type testConnectionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleTestServer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	srv, err := s.store.GetServer(id)
	if err != nil {
		writeKindError(w, err)
		return
	}
	client, err := s.factory(srv)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := client.TestConnection(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, testConnectionResult{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, testConnectionResult{Success: true})
}

// handleSyncServer starts a catalog refresh as a background job and
// returns it immediately.
func (s *Server) handleSyncServer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	srv, err := s.store.GetServer(id)
	if err != nil {
		writeKindError(w, err)
		return
	}

	job := s.jobs.Create(models.JobKindSync, "Sync "+srv.Name)
	go s.runSync(job.ID, srv)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) runSync(jobID string, srv *models.MediaServer) {
	ctx, err := s.jobs.Start(context.Background(), jobID)
	if err != nil {
		return
	}
	ctx, progress := mediautil.ContextWithProgress(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			pct := syncPhasePct(p.Phase)
			_ = s.jobs.UpdateProgress(jobID, pct, p.Phase, jobs.Extras{})
		}
	}()

	syncer := catalog.NewSyncer(s.store, s.factory)
	report, err := syncer.SyncServer(ctx, srv)
	mediautil.CloseProgress(ctx)
	<-done

	if err != nil {
		_ = s.jobs.Fail(jobID, err.Error())
		s.recordJob(jobID)
		return
	}
	_ = s.jobs.Complete(jobID, report)
	s.recordJob(jobID)
}

func syncPhasePct(phase string) float64 {
	switch phase {
	case mediautil.PhaseLibraries:
		return 10
	case mediautil.PhaseItems, mediautil.PhaseEnriching:
		return 50
	case mediautil.PhasePruning:
		return 85
	case mediautil.PhaseDone:
		return 100
	}
	return 0
}
