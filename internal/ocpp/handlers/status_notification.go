package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"voltgrid/internal/models"
	"voltgrid/internal/ocpp"
	"voltgrid/internal/ocpp/protocol"
	"voltgrid/internal/service"
)

// NewStatusNotificationHandler feeds single connector statuses into the
// availability rollup. Statuses arriving before the station has reported its
// device model are acked and dropped.
func NewStatusNotificationHandler(availability *service.AvailabilityService, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.StatusNotificationRequest](payload)
		if err != nil {
			return nil, err
		}
		if req.ConnectorStatus == "" {
			return protocol.StatusNotificationResponse{}, nil
		}

		batch := models.ConnectorStatusBatch{
			Statuses: []string{req.ConnectorStatus},
		}
		if req.EvseID > 0 {
			evseID := req.EvseID
			batch.EvseID = &evseID
		}
		if req.ConnectorID > 0 {
			connectorID := req.ConnectorID
			batch.ConnectorID = &connectorID
		}

		if err := availability.SubmitConnectorStatuses(ctx, stationID, batch); err != nil {
			logger.Warn("status notification not applied", zap.String("station_id", stationID), zap.Error(err))
		}
		return protocol.StatusNotificationResponse{}, nil
	}
}
