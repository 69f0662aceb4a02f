package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voltgrid/internal/models"
	"voltgrid/internal/repository"
)

// ErrInvalidInput marks malformed submissions that are rejected before any
// mutation. Retrying the same payload unmodified will fail again.
var ErrInvalidInput = errors.New("invalid input")

// ReportService applies incoming device-model reports and set-variable
// results to the store.
type ReportService struct {
	repo   *repository.DeviceModelRepository
	logger *zap.Logger
}

// NewReportService returns the service.
func NewReportService(repo *repository.DeviceModelRepository, logger *zap.Logger) *ReportService {
	return &ReportService{repo: repo, logger: logger}
}

// SubmitReport validates and applies one report, returning the current
// attribute list for the reported (component, variable) pair.
func (s *ReportService) SubmitReport(ctx context.Context, stationID string, report models.Report, generatedAt time.Time) ([]models.VariableAttribute, error) {
	if stationID == "" {
		return nil, fmt.Errorf("%w: station id is required", ErrInvalidInput)
	}
	if report.Component.Name == "" {
		return nil, fmt.Errorf("%w: component name is required", ErrInvalidInput)
	}
	if report.Variable.Name == "" {
		return nil, fmt.Errorf("%w: variable name is required", ErrInvalidInput)
	}
	if len(report.Attributes) == 0 {
		return nil, fmt.Errorf("%w: report carries no attributes", ErrInvalidInput)
	}
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	attrs, err := s.repo.CreateOrUpdateByReport(ctx, stationID, report, generatedAt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("report applied",
		zap.String("station_id", stationID),
		zap.String("component", report.Component.Name),
		zap.String("variable", report.Variable.Name),
		zap.Int("attributes", len(attrs)))
	return attrs, nil
}

// SubmitSetVariableResult records a station's acceptance or rejection of a
// configuration change and returns the updated attribute with its history.
func (s *ReportService) SubmitSetVariableResult(ctx context.Context, stationID string, result models.SetVariableResult, reportedAt time.Time) (*models.VariableAttribute, error) {
	if stationID == "" {
		return nil, fmt.Errorf("%w: station id is required", ErrInvalidInput)
	}
	if result.Component.Name == "" {
		return nil, fmt.Errorf("%w: component name is required", ErrInvalidInput)
	}
	if result.Variable.Name == "" {
		return nil, fmt.Errorf("%w: variable name is required", ErrInvalidInput)
	}
	if result.Status == "" {
		return nil, fmt.Errorf("%w: acceptance status is required", ErrInvalidInput)
	}
	if reportedAt.IsZero() {
		reportedAt = time.Now().UTC()
	}

	attr, err := s.repo.UpdateByResult(ctx, stationID, result, reportedAt)
	if err != nil {
		return nil, err
	}

	s.logger.Info("set-variable result applied",
		zap.String("station_id", stationID),
		zap.String("variable", result.Variable.Name),
		zap.String("status", string(result.Status)))
	return attr, nil
}

// QueryAttributes fetches attributes by typed filter.
func (s *ReportService) QueryAttributes(ctx context.Context, query repository.AttributeQuery) ([]models.VariableAttribute, error) {
	return s.repo.ReadAllByQuery(ctx, query)
}

// PendingForStation returns the set-variable payloads flagged as pending
// configuration for a station.
func (s *ReportService) PendingForStation(ctx context.Context, stationID string) ([]models.SetVariableData, error) {
	if stationID == "" {
		return nil, fmt.Errorf("%w: station id is required", ErrInvalidInput)
	}
	return s.repo.ReadAllPendingByStation(ctx, stationID)
}

// FlagPending marks or clears an attribute as pending configuration.
func (s *ReportService) FlagPending(ctx context.Context, attributeID int64, bootConfigSetID *int64) error {
	return s.repo.SetBootConfig(ctx, attributeID, bootConfigSetID)
}
