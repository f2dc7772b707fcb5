package server

import (
	"encoding/json"
	"net/http"

	"chanplan/internal/httputil"
	"chanplan/internal/store"
)

// maskedSecret stands in for stored keys on reads. A PUT echoing it back
// keeps the stored value.
const maskedSecret = "********"

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	return maskedSecret
}

func unmask(key string) string {
	if key == maskedSecret {
		return ""
	}
	return key
}

type tmdbSettings struct {
	APIKey   string `json:"apiKey"`
	Language string `json:"language,omitempty"`
}

func (s *Server) handleGetTMDBSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetTMDBConfig()
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmdbSettings{APIKey: maskKey(cfg.APIKey), Language: cfg.Language})
}

func (s *Server) handleUpdateTMDBSettings(w http.ResponseWriter, r *http.Request) {
	var req tmdbSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cfg := store.TMDBConfig{APIKey: unmask(req.APIKey), Language: req.Language}
	if err := s.store.SetTMDBConfig(cfg); err != nil {
		writeKindError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTMDBSettings(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTMDBConfig(); err != nil {
		writeKindError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTestTMDBSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetTMDBConfig()
	if err != nil {
		writeKindError(w, err)
		return
	}
	if cfg.APIKey == "" {
		writeError(w, http.StatusBadRequest, "tmdb api key not configured")
		return
	}
	if err := s.newTMDB(cfg.APIKey).TestConnection(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, testConnectionResult{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, testConnectionResult{Success: true})
}

type sinkSettings struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey"`
}

func (s *Server) handleGetSinkSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetSinkConfig()
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sinkSettings{URL: cfg.URL, APIKey: maskKey(cfg.APIKey)})
}

func (s *Server) handleUpdateSinkSettings(w http.ResponseWriter, r *http.Request) {
	var req sinkSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	// An empty URL clears the sink; anything else must be a usable endpoint.
	if req.URL != "" {
		if err := httputil.ValidateIntegrationURL(req.URL); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	cfg := store.SinkConfig{URL: req.URL, APIKey: unmask(req.APIKey)}
	if err := s.store.SetSinkConfig(cfg); err != nil {
		writeKindError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type suggestSettings struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey"`
	Model  string `json:"model,omitempty"`
}

func (s *Server) handleGetSuggestSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetSuggestConfig()
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestSettings{URL: cfg.URL, APIKey: maskKey(cfg.APIKey), Model: cfg.Model})
}

func (s *Server) handleUpdateSuggestSettings(w http.ResponseWriter, r *http.Request) {
	var req suggestSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.URL != "" {
		if err := httputil.ValidateIntegrationURL(req.URL); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	cfg := store.SuggestConfig{URL: req.URL, APIKey: unmask(req.APIKey), Model: req.Model}
	if err := s.store.SetSuggestConfig(cfg); err != nil {
		writeKindError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type retentionSettings struct {
	Results        int `json:"results"`
	JobHistoryDays int `json:"jobHistoryDays"`
}

func (s *Server) handleGetRetentionSettings(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.GetResultRetention()
	if err != nil {
		writeKindError(w, err)
		return
	}
	days, err := s.store.GetJobHistoryDays()
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, retentionSettings{Results: results, JobHistoryDays: days})
}

func (s *Server) handleUpdateRetentionSettings(w http.ResponseWriter, r *http.Request) {
	var req retentionSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Results < 1 || req.JobHistoryDays < 1 {
		writeError(w, http.StatusBadRequest, "retention values must be at least 1")
		return
	}
	if err := s.store.SetResultRetention(req.Results); err != nil {
		writeKindError(w, err)
		return
	}
	if err := s.store.SetJobHistoryDays(req.JobHistoryDays); err != nil {
		writeKindError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRotateAPIKey mints a fresh admin key. The response is the only
// place the plaintext ever appears.
func (s *Server) handleRotateAPIKey(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "auth not configured")
		return
	}
	key, err := s.auth.Rotate()
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"apiKey": key})
}
