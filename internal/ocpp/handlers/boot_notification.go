package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"voltgrid/internal/models"
	"voltgrid/internal/ocpp"
	"voltgrid/internal/ocpp/protocol"
	"voltgrid/internal/repository"
	"voltgrid/internal/service"
)

// NewBootNotificationHandler registers the station and answers with
// Pending when configuration is still waiting to be pushed to it.
func NewBootNotificationHandler(stations *repository.StationRepository, reports *service.ReportService, interval time.Duration, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.BootNotificationRequest](payload)
		if err != nil {
			return nil, err
		}

		station := &models.Station{
			ID:              stationID,
			Vendor:          req.ChargingStation.VendorName,
			Model:           req.ChargingStation.Model,
			FirmwareVersion: req.ChargingStation.FirmwareVersion,
			LastSeen:        time.Now().UTC(),
		}
		if err := stations.Upsert(ctx, station); err != nil {
			logger.Error("failed to upsert station", zap.String("station_id", stationID), zap.Error(err))
			return nil, err
		}

		status := protocol.RegistrationAccepted
		pending, err := reports.PendingForStation(ctx, stationID)
		if err != nil {
			logger.Warn("pending lookup failed on boot", zap.String("station_id", stationID), zap.Error(err))
		} else if len(pending) > 0 {
			status = protocol.RegistrationPending
		}

		return protocol.BootNotificationResponse{
			CurrentTime: time.Now().UTC(),
			Interval:    int(interval.Seconds()),
			Status:      status,
		}, nil
	}
}
