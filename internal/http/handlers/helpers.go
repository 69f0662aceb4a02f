package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"voltgrid/internal/repository"
	"voltgrid/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, repository.ErrDuplicateAttributeTypes),
		errors.Is(err, repository.ErrMissingValue):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrAttributeNotFound),
		errors.Is(err, repository.ErrStationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
