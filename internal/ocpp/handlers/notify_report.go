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

// NewNotifyReportHandler applies every entry of a NotifyReport chunk to the
// device model. Entries fail independently; one malformed entry does not
// discard the rest of the chunk.
func NewNotifyReportHandler(reports *service.ReportService, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.NotifyReportRequest](payload)
		if err != nil {
			return nil, err
		}

		for _, entry := range req.ReportData {
			report := models.Report{
				Component:       entry.Component,
				Variable:        entry.Variable,
				Characteristics: entry.VariableCharacteristics,
				Attributes:      entry.VariableAttribute,
			}
			if _, err := reports.SubmitReport(ctx, stationID, report, req.GeneratedAt); err != nil {
				logger.Warn("report entry rejected",
					zap.String("station_id", stationID),
					zap.String("component", entry.Component.Name),
					zap.String("variable", entry.Variable.Name),
					zap.Error(err))
			}
		}

		return protocol.NotifyReportResponse{}, nil
	}
}
