package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"voltgrid/internal/service"
)

// StationAdminHandler holds operator endpoints for the station registry.
type StationAdminHandler struct {
	svc    *service.StationService
	logger *zap.Logger
}

// NewStationAdminHandler builds handler set.
func NewStationAdminHandler(svc *service.StationService, logger *zap.Logger) *StationAdminHandler {
	return &StationAdminHandler{
		svc:    svc,
		logger: logger,
	}
}

type setPasswordRequest struct {
	StationID string `json:"station_id"`
	Password  string `json:"password"`
}

// HandleSetPassword handles PUT /admin/stations/password.
func (h *StationAdminHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.svc.SetPassword(r.Context(), req.StationID, req.Password); err != nil {
		h.logger.Error("set station password failed", zap.String("station_id", req.StationID), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
