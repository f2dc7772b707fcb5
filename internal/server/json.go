package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"chanplan/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeKindError maps an error to a status by its kind. Config errors are
// the caller's fault and echo their message; everything else stays
// neutral so internals never leak.
func writeKindError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch models.KindOf(err) {
	case models.KindConfig:
		writeError(w, http.StatusBadRequest, err.Error())
	case models.KindData:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case models.KindDependency:
		writeError(w, http.StatusBadGateway, "upstream service error")
	default:
		writeError(w, http.StatusInternalServerError, "internal")
	}
}
