package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"voltgrid/internal/models"
	"voltgrid/internal/password"
	"voltgrid/internal/repository"
)

// EvseState is one EVSE's derived availability in a StationAvailability view.
type EvseState struct {
	EvseID int    `json:"evse_id"`
	State  string `json:"state"`
}

// StationAvailability is the derived status of a station and its EVSEs.
type StationAvailability struct {
	StationID string      `json:"station_id"`
	State     string      `json:"state"`
	Evses     []EvseState `json:"evses"`
}

// StationService manages the station registry and station credentials.
type StationService struct {
	stations *repository.StationRepository
	devices  *repository.DeviceModelRepository
	hasher   password.Hasher
	logger   *zap.Logger
}

// NewStationService returns the service.
func NewStationService(stations *repository.StationRepository, devices *repository.DeviceModelRepository, hasher password.Hasher, logger *zap.Logger) *StationService {
	return &StationService{stations: stations, devices: devices, hasher: hasher, logger: logger}
}

// Get returns one registered station.
func (s *StationService) Get(ctx context.Context, stationID string) (*models.Station, error) {
	if stationID == "" {
		return nil, fmt.Errorf("%w: station id is required", ErrInvalidInput)
	}
	return s.stations.Get(ctx, stationID)
}

// SetPassword hashes and stores a new connection password for the station,
// registering the station if it is not known yet.
func (s *StationService) SetPassword(ctx context.Context, stationID, plaintext string) error {
	if stationID == "" {
		return fmt.Errorf("%w: station id is required", ErrInvalidInput)
	}
	if len(plaintext) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	if err := s.stations.SetPasswordHash(ctx, stationID, hash); err != nil {
		return err
	}
	s.logger.Info("station password updated", zap.String("station_id", stationID))
	return nil
}

// VerifyPassword checks a station's connection password. Used by the
// websocket endpoint's basic auth.
func (s *StationService) VerifyPassword(ctx context.Context, stationID, plaintext string) error {
	hash, err := s.stations.GetPasswordHash(ctx, stationID)
	if err != nil {
		return err
	}
	return s.hasher.Compare(hash, plaintext)
}

// Availability reads the station-level and per-EVSE AvailabilityState back
// out of the device model. Stations that never reported a status come back
// with empty state strings rather than an error.
func (s *StationService) Availability(ctx context.Context, stationID string) (*StationAvailability, error) {
	if stationID == "" {
		return nil, fmt.Errorf("%w: station id is required", ErrInvalidInput)
	}
	if _, err := s.stations.Get(ctx, stationID); err != nil {
		return nil, err
	}

	view := &StationAvailability{StationID: stationID, Evses: []EvseState{}}

	stationAttrs, err := s.devices.ReadAllByQuery(ctx, repository.AttributeQuery{
		StationID:     stationID,
		ComponentName: models.ChargingStationComponent,
		VariableName:  models.AvailabilityStateVariable,
	})
	if err != nil {
		return nil, err
	}
	if len(stationAttrs) > 0 && stationAttrs[0].Value != nil {
		view.State = *stationAttrs[0].Value
	}

	evseAttrs, err := s.devices.ReadAllByQuery(ctx, repository.AttributeQuery{
		StationID:     stationID,
		ComponentName: models.EvseComponent,
		VariableName:  models.AvailabilityStateVariable,
	})
	if err != nil {
		return nil, err
	}
	for _, attr := range evseAttrs {
		if attr.Component == nil || attr.Component.Evse == nil {
			continue
		}
		// Connector-scoped EVSE components do not appear in the rollup view.
		if attr.Component.Evse.ConnectorID != nil {
			continue
		}
		state := EvseState{EvseID: attr.Component.Evse.EvseID}
		if attr.Value != nil {
			state.State = *attr.Value
		}
		view.Evses = append(view.Evses, state)
	}
	return view, nil
}
