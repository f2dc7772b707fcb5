package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chanplan/internal/metrics"
)

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	runLimit := newRunLimiter(runTriggerEvery, runTriggerBurst)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(limitBody)
		r.Use(corsMiddleware(s.corsOrigin))
		if s.auth != nil {
			r.Use(s.auth.RequireKey())
		}

		r.Get("/version", s.handleVersion)

		r.Route("/profiles", func(pr chi.Router) {
			pr.Get("/", s.handleListProfiles)
			pr.Post("/", s.handleCreateProfile)
			pr.Get("/{id}", s.handleGetProfile)
			pr.Put("/{id}", s.handleUpdateProfile)
			pr.Delete("/{id}", s.handleDeleteProfile)
		})

		r.Route("/channels", func(cr chi.Router) {
			cr.Get("/", s.handleListChannels)
			cr.Post("/", s.handleCreateChannel)
			cr.Get("/{id}", s.handleGetChannel)
			cr.Put("/{id}", s.handleUpdateChannel)
			cr.Delete("/{id}", s.handleDeleteChannel)
		})

		r.Route("/servers", func(sr chi.Router) {
			sr.Get("/", s.handleListServers)
			sr.Post("/", s.handleCreateServer)
			sr.Get("/{id}", s.handleGetServer)
			sr.Put("/{id}", s.handleUpdateServer)
			sr.Delete("/{id}", s.handleDeleteServer)
			sr.Post("/{id}/test", s.handleTestServer)
			sr.With(runLimit.middleware).Post("/{id}/sync", s.handleSyncServer)
		})

		r.Route("/schedules", func(sr chi.Router) {
			sr.Get("/", s.handleListSchedules)
			sr.Post("/", s.handleCreateSchedule)
			sr.Get("/{id}", s.handleGetSchedule)
			sr.Put("/{id}", s.handleUpdateSchedule)
			sr.Delete("/{id}", s.handleDeleteSchedule)
		})

		r.Route("/settings", func(sr chi.Router) {
			sr.Get("/tmdb", s.handleGetTMDBSettings)
			sr.Put("/tmdb", s.handleUpdateTMDBSettings)
			sr.Delete("/tmdb", s.handleDeleteTMDBSettings)
			sr.Post("/tmdb/test", s.handleTestTMDBSettings)
			sr.Get("/sink", s.handleGetSinkSettings)
			sr.Put("/sink", s.handleUpdateSinkSettings)
			sr.Get("/suggest", s.handleGetSuggestSettings)
			sr.Put("/suggest", s.handleUpdateSuggestSettings)
			sr.Get("/retention", s.handleGetRetentionSettings)
			sr.Put("/retention", s.handleUpdateRetentionSettings)
			sr.Post("/auth/rotate", s.handleRotateAPIKey)
		})

		r.Route("/programming", func(pr chi.Router) {
			pr.With(runLimit.middleware).Post("/run", s.handleProgrammingRun)
			pr.Post("/score", s.handleProgrammingScore)
		})

		r.Route("/results", func(rr chi.Router) {
			rr.Get("/", s.handleListResults)
			rr.Get("/{id}", s.handleGetResult)
			rr.Get("/{id}/csv", s.handleResultCSV)
			rr.Delete("/{id}", s.handleDeleteResult)
		})

		r.Route("/jobs", func(jr chi.Router) {
			jr.Get("/", s.handleListJobs)
			jr.Delete("/", s.handleClearJobs)
			jr.Get("/history", s.handleJobHistory)
			jr.Get("/{id}", s.handleGetJob)
			jr.Post("/{id}/cancel", s.handleCancelJob)
		})
	})

	// Streaming endpoints manage their own lifetimes and skip the body
	// limit.
	s.router.Group(func(r chi.Router) {
		r.Use(corsMiddleware(s.corsOrigin))
		if s.auth != nil {
			r.Use(s.auth.RequireKey())
		}
		r.Get("/api/jobs/events", s.handleJobEvents)
		r.Get("/api/jobs/ws", s.handleJobsWS)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
