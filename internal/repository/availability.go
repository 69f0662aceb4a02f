package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"voltgrid/internal/models"
)

// EvseAvailability is the stored AvailabilityState of one EVSE-scoped
// component.
type EvseAvailability struct {
	ComponentID int64
	Value       *string
}

// FindEvse returns the EVSE identified by (id, connectorId), or nil when it
// is not known yet.
func (r *DeviceModelRepository) FindEvse(ctx context.Context, evseID int, connectorID *int) (*models.Evse, error) {
	const query = `
		SELECT database_id, evse_id, connector_id FROM evses
		WHERE evse_id = $1 AND connector_id IS NOT DISTINCT FROM $2
	`
	var (
		evse      models.Evse
		connector sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, evseID, connectorID).Scan(&evse.DatabaseID, &evse.EvseID, &connector)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find evse %d: %w", evseID, err)
	}
	evse.ConnectorID = optInt(connector)
	return &evse, nil
}

// FindComponentByName returns the first component with the given name,
// regardless of EVSE scope. Used to locate the ChargingStation component.
func (r *DeviceModelRepository) FindComponentByName(ctx context.Context, name string) (*models.Component, error) {
	const query = `
		SELECT id, name, instance, evse_database_id FROM components
		WHERE name = $1
		ORDER BY id
		LIMIT 1
	`
	return r.scanComponent(r.db.QueryRowContext(ctx, query, name))
}

// FindComponentByNameAndEvse returns the component with the given name scoped
// to one EVSE. Used to locate the EVSE component being aggregated.
func (r *DeviceModelRepository) FindComponentByNameAndEvse(ctx context.Context, name string, evseDatabaseID int64) (*models.Component, error) {
	const query = `
		SELECT id, name, instance, evse_database_id FROM components
		WHERE name = $1 AND evse_database_id = $2
		ORDER BY id
		LIMIT 1
	`
	return r.scanComponent(r.db.QueryRowContext(ctx, query, name, evseDatabaseID))
}

func (r *DeviceModelRepository) scanComponent(row *sql.Row) (*models.Component, error) {
	var (
		component models.Component
		instance  sql.NullString
		evseDB    sql.NullInt64
	)
	err := row.Scan(&component.ID, &component.Name, &instance, &evseDB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: scan component: %w", err)
	}
	component.Instance = optStr(instance)
	component.EvseDatabaseID = optInt64(evseDB)
	return &component, nil
}

// FindVariableByName returns the first variable with the given name, or nil.
func (r *DeviceModelRepository) FindVariableByName(ctx context.Context, name string) (*models.Variable, error) {
	const query = `
		SELECT id, name, instance FROM variables
		WHERE name = $1
		ORDER BY id
		LIMIT 1
	`
	var (
		variable models.Variable
		instance sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, name).Scan(&variable.ID, &variable.Name, &instance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find variable %q: %w", name, err)
	}
	variable.Instance = optStr(instance)
	return &variable, nil
}

// ListEvseAvailability returns the stored availability value of every
// EVSE-scoped component of the station. Connector-scoped components are
// excluded: only components attached to whole EVSEs (connector id absent)
// participate in the station-level rollup.
func (r *DeviceModelRepository) ListEvseAvailability(ctx context.Context, stationID string, variableID int64) ([]EvseAvailability, error) {
	const query = `
		SELECT va.component_id, va.value
		FROM variable_attributes va
		JOIN components c ON c.id = va.component_id
		JOIN evses e ON e.database_id = c.evse_database_id
		WHERE va.station_id = $1 AND va.variable_id = $2 AND e.connector_id IS NULL
		ORDER BY va.component_id
	`
	rows, err := r.db.QueryContext(ctx, query, stationID, variableID)
	if err != nil {
		return nil, fmt.Errorf("repository: list evse availability for %s: %w", stationID, err)
	}
	defer rows.Close()

	var states []EvseAvailability
	for rows.Next() {
		var (
			state EvseAvailability
			value sql.NullString
		)
		if err := rows.Scan(&state.ComponentID, &value); err != nil {
			return nil, fmt.Errorf("repository: scan evse availability: %w", err)
		}
		state.Value = optStr(value)
		states = append(states, state)
	}
	return states, rows.Err()
}

// UpdateAttributeValue overwrites the stored value of the attribute slots
// matching (station, component, variable) and reports how many slots matched.
// Used by the aggregator to write derived availability back through the same
// rows reports land in; zero matched rows means the station never reported
// the attribute, which is the caller's signal not to advertise the value.
func (r *DeviceModelRepository) UpdateAttributeValue(ctx context.Context, stationID string, componentID, variableID int64, value string) (int64, error) {
	const query = `
		UPDATE variable_attributes
		SET value = $1
		WHERE station_id = $2 AND component_id = $3 AND variable_id = $4
	`
	res, err := r.db.ExecContext(ctx, query, value, stationID, componentID, variableID)
	if err != nil {
		return 0, fmt.Errorf("repository: update availability value for %s: %w", stationID, err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repository: update availability value for %s: %w", stationID, err)
	}
	return updated, nil
}
