package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"voltgrid/internal/models"
	"voltgrid/internal/repository"
)

// availabilityCache mirrors derived statuses for cheap polling. Optional;
// write failures are logged and swallowed.
type availabilityCache interface {
	SetStationState(ctx context.Context, stationID string, state models.AvailabilityState) error
	SetEvseState(ctx context.Context, stationID string, evseID int, state models.AvailabilityState) error
}

// AvailabilityService rolls raw per-connector statuses up into EVSE-level and
// station-level AvailabilityState values and writes them back into the device
// model.
type AvailabilityService struct {
	repo   *repository.DeviceModelRepository
	cache  availabilityCache
	logger *zap.Logger
}

// NewAvailabilityService returns the service. The cache may be nil.
func NewAvailabilityService(repo *repository.DeviceModelRepository, cache availabilityCache, logger *zap.Logger) *AvailabilityService {
	return &AvailabilityService{repo: repo, cache: cache, logger: logger}
}

// SubmitConnectorStatuses derives and persists the EVSE-level and
// station-level availability for one batch of raw connector statuses. An
// empty batch is a no-op. Unrecognized status strings count toward the batch
// size but toward no bucket, which can skew the all-Unavailable/all-Faulted
// checks; that mirrors upstream behavior and is left as is.
func (s *AvailabilityService) SubmitConnectorStatuses(ctx context.Context, stationID string, batch models.ConnectorStatusBatch) error {
	if stationID == "" {
		return fmt.Errorf("%w: station id is required", ErrInvalidInput)
	}
	if len(batch.Statuses) == 0 {
		return nil
	}

	availability, err := s.repo.FindVariableByName(ctx, models.AvailabilityStateVariable)
	if err != nil {
		return err
	}
	if availability == nil {
		return fmt.Errorf("station %s has no %s variable yet", stationID, models.AvailabilityStateVariable)
	}

	stationComponent, err := s.repo.FindComponentByName(ctx, models.ChargingStationComponent)
	if err != nil {
		return err
	}
	if stationComponent == nil {
		return fmt.Errorf("station %s has no %s component yet", stationID, models.ChargingStationComponent)
	}

	if batch.EvseID == nil {
		// Batch without an EVSE scope: the raw statuses stand in for the
		// whole station.
		stationState := mergeStatuses(batch.Statuses)
		updated, err := s.repo.UpdateAttributeValue(ctx, stationID, stationComponent.ID, availability.ID, string(stationState))
		if err != nil {
			return err
		}
		if updated > 0 {
			s.cacheStation(ctx, stationID, stationState)
		} else {
			s.logger.Warn("station has no availability attribute to update", zap.String("station_id", stationID))
		}
		return nil
	}

	evse, err := s.repo.FindEvse(ctx, *batch.EvseID, nil)
	if err != nil {
		return err
	}
	if evse == nil {
		return fmt.Errorf("station %s reports status for unknown EVSE %d", stationID, *batch.EvseID)
	}

	evseComponent, err := s.repo.FindComponentByNameAndEvse(ctx, models.EvseComponent, evse.DatabaseID)
	if err != nil {
		return err
	}
	if evseComponent == nil {
		return fmt.Errorf("EVSE %d of station %s has no %s component yet", *batch.EvseID, stationID, models.EvseComponent)
	}

	evseState := mergeStatuses(batch.Statuses)

	// Collect the stored availability of every other EVSE-scoped component,
	// replace the one being processed with the just-computed value, and run
	// the same precedence over the set.
	stored, err := s.repo.ListEvseAvailability(ctx, stationID, availability.ID)
	if err != nil {
		return err
	}
	evseStates := make([]string, 0, len(stored)+1)
	for _, st := range stored {
		if st.ComponentID == evseComponent.ID {
			continue
		}
		if st.Value != nil {
			evseStates = append(evseStates, *st.Value)
		} else {
			evseStates = append(evseStates, "")
		}
	}
	evseStates = append(evseStates, string(evseState))
	stationState := mergeStatuses(evseStates)

	stationUpdated, err := s.repo.UpdateAttributeValue(ctx, stationID, stationComponent.ID, availability.ID, string(stationState))
	if err != nil {
		return err
	}
	evseUpdated, err := s.repo.UpdateAttributeValue(ctx, stationID, evseComponent.ID, availability.ID, string(evseState))
	if err != nil {
		return err
	}

	s.logger.Info("availability updated",
		zap.String("station_id", stationID),
		zap.Int("evse_id", *batch.EvseID),
		zap.String("evse_state", string(evseState)),
		zap.String("station_state", string(stationState)))

	// The cache mirrors the store; a state the station never reported an
	// attribute slot for must not be advertised.
	if stationUpdated > 0 {
		s.cacheStation(ctx, stationID, stationState)
	} else {
		s.logger.Warn("station has no availability attribute to update", zap.String("station_id", stationID))
	}
	if evseUpdated > 0 && s.cache != nil {
		if err := s.cache.SetEvseState(ctx, stationID, *batch.EvseID, evseState); err != nil {
			s.logger.Warn("evse availability cache write failed", zap.String("station_id", stationID), zap.Error(err))
		}
	}
	return nil
}

func (s *AvailabilityService) cacheStation(ctx context.Context, stationID string, state models.AvailabilityState) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetStationState(ctx, stationID, state); err != nil {
		s.logger.Warn("station availability cache write failed", zap.String("station_id", stationID), zap.Error(err))
	}
}

// mergeStatuses reduces a set of status strings to one state. First match
// wins: any Reserved, else any Occupied, else all Unavailable, else all
// Faulted, else Available. Unrecognized strings contribute to the total only.
func mergeStatuses(statuses []string) models.AvailabilityState {
	total := len(statuses)
	var reserved, occupied, unavailable, faulted int
	for _, raw := range statuses {
		state, ok := models.ParseAvailabilityState(raw)
		if !ok {
			continue
		}
		switch state {
		case models.StateReserved:
			reserved++
		case models.StateOccupied:
			occupied++
		case models.StateUnavailable:
			unavailable++
		case models.StateFaulted:
			faulted++
		}
	}

	switch {
	case reserved > 0:
		return models.StateReserved
	case occupied > 0:
		return models.StateOccupied
	case unavailable == total:
		return models.StateUnavailable
	case faulted == total:
		return models.StateFaulted
	default:
		return models.StateAvailable
	}
}
