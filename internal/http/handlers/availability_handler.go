package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"voltgrid/internal/models"
	"voltgrid/internal/service"
)

// AvailabilityHandler exposes connector status ingest and the derived
// availability view.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
	stations     *service.StationService
	logger       *zap.Logger
}

// NewAvailabilityHandler builds handler set.
func NewAvailabilityHandler(availability *service.AvailabilityService, stations *service.StationService, logger *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		availability: availability,
		stations:     stations,
		logger:       logger,
	}
}

type connectorStatusRequest struct {
	StationID string `json:"station_id"`
	models.ConnectorStatusBatch
}

// HandleConnectorStatus handles POST /internal/ocpp/connector-status.
// Aggregation runs against whatever device model has been reported so far;
// statuses arriving before the model is known are acknowledged and dropped.
func (h *AvailabilityHandler) HandleConnectorStatus(w http.ResponseWriter, r *http.Request) {
	var req connectorStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.StationID == "" {
		writeError(w, http.StatusBadRequest, "station_id is required")
		return
	}

	if err := h.availability.SubmitConnectorStatuses(r.Context(), req.StationID, req.ConnectorStatusBatch); err != nil {
		h.logger.Warn("connector status not applied", zap.String("station_id", req.StationID), zap.Error(err))
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

// HandleAvailability handles GET /stations/availability.
func (h *AvailabilityHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	stationID := r.URL.Query().Get("station_id")
	view, err := h.stations.Availability(r.Context(), stationID)
	if err != nil {
		h.logger.Error("availability query failed", zap.String("station_id", stationID), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
