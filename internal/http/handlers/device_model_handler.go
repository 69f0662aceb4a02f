package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"voltgrid/internal/models"
	"voltgrid/internal/repository"
	"voltgrid/internal/service"
)

// DeviceModelHandler holds registry endpoints invoked by the OCPP ingest and
// by operators.
type DeviceModelHandler struct {
	svc    *service.ReportService
	logger *zap.Logger
}

// NewDeviceModelHandler builds handler set.
func NewDeviceModelHandler(svc *service.ReportService, logger *zap.Logger) *DeviceModelHandler {
	return &DeviceModelHandler{
		svc:    svc,
		logger: logger,
	}
}

type reportRequest struct {
	StationID   string        `json:"station_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Report      models.Report `json:"report"`
}

type setVariableResultRequest struct {
	StationID  string                   `json:"station_id"`
	ReportedAt time.Time                `json:"reported_at"`
	Result     models.SetVariableResult `json:"result"`
}

type flagPendingRequest struct {
	AttributeID     int64  `json:"attribute_id"`
	BootConfigSetID *int64 `json:"boot_config_set_id"`
}

// HandleReport handles POST /internal/ocpp/reports.
func (h *DeviceModelHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	attrs, err := h.svc.SubmitReport(r.Context(), req.StationID, req.Report, req.GeneratedAt)
	if err != nil {
		h.logger.Error("report failed", zap.String("station_id", req.StationID), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attributes": attrs})
}

// HandleSetVariableResult handles POST /internal/ocpp/set-variable-results.
func (h *DeviceModelHandler) HandleSetVariableResult(w http.ResponseWriter, r *http.Request) {
	var req setVariableResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	attr, err := h.svc.SubmitSetVariableResult(r.Context(), req.StationID, req.Result, req.ReportedAt)
	if err != nil {
		h.logger.Error("set-variable result failed", zap.String("station_id", req.StationID), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attribute": attr})
}

// HandleAttributes handles GET /attributes.
func (h *DeviceModelHandler) HandleAttributes(w http.ResponseWriter, r *http.Request) {
	query, err := attributeQueryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attrs, err := h.svc.QueryAttributes(r.Context(), query)
	if err != nil {
		h.logger.Error("attribute query failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attributes": attrs})
}

// HandlePending handles GET /attributes/pending.
func (h *DeviceModelHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	stationID := r.URL.Query().Get("station_id")
	pending, err := h.svc.PendingForStation(r.Context(), stationID)
	if err != nil {
		h.logger.Error("pending query failed", zap.String("station_id", stationID), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pending": pending})
}

// HandleFlagPending handles PUT /admin/attributes/pending.
func (h *DeviceModelHandler) HandleFlagPending(w http.ResponseWriter, r *http.Request) {
	var req flagPendingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.AttributeID == 0 {
		writeError(w, http.StatusBadRequest, "attribute_id is required")
		return
	}

	if err := h.svc.FlagPending(r.Context(), req.AttributeID, req.BootConfigSetID); err != nil {
		h.logger.Error("flag pending failed", zap.Int64("attribute_id", req.AttributeID), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func attributeQueryFromRequest(r *http.Request) (repository.AttributeQuery, error) {
	params := r.URL.Query()
	query := repository.AttributeQuery{
		StationID:         params.Get("station_id"),
		ComponentName:     params.Get("component"),
		ComponentInstance: params.Get("component_instance"),
		VariableName:      params.Get("variable"),
		VariableInstance:  params.Get("variable_instance"),
		Value:             params.Get("value"),
		IncludeStatuses:   params.Get("include_statuses") == "true",
	}
	if query.StationID == "" {
		return query, errInvalidQuery("station_id is required")
	}

	if raw := params.Get("evse_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return query, errInvalidQuery("evse_id must be an integer")
		}
		query.EvseID = &id
	}
	if raw := params.Get("connector_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return query, errInvalidQuery("connector_id must be an integer")
		}
		query.ConnectorID = &id
	}
	if raw := params.Get("type"); raw != "" {
		attrType := models.AttributeType(raw)
		query.Type = &attrType
	}
	return query, nil
}

type errInvalidQuery string

func (e errInvalidQuery) Error() string { return string(e) }
