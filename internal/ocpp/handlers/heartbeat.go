package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"voltgrid/internal/ocpp"
	"voltgrid/internal/ocpp/protocol"
	"voltgrid/internal/repository"
)

// NewHeartbeatHandler bumps last_seen and acks with current time.
func NewHeartbeatHandler(stations *repository.StationRepository, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		now := time.Now().UTC()
		if err := stations.Touch(ctx, stationID); err != nil {
			logger.Warn("heartbeat upsert failed", zap.String("station_id", stationID), zap.Error(err))
		}
		return protocol.HeartbeatResponse{CurrentTime: now}, nil
	}
}
