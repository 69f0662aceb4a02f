package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"voltgrid/internal/models"
)

// UpdateByResult records a station's acceptance or rejection of a
// configuration change. A status row is always appended. On acceptance the
// live value becomes the submitted value; on anything else the live value is
// rolled back to the most recent accepted one, or left as last known when no
// accepted record exists. The timestamp advances to the event time either
// way.
func (r *DeviceModelRepository) UpdateByResult(ctx context.Context, stationID string, result models.SetVariableResult, reportedAt time.Time) (*models.VariableAttribute, error) {
	attrType := models.AttributeActual
	if result.AttributeType != nil {
		attrType = *result.AttributeType
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("repository: begin result transaction: %w", err)
	}
	defer tx.Rollback()

	var evseDatabaseID *int64
	if result.Component.Evse != nil {
		const findEvse = `
			SELECT database_id FROM evses
			WHERE evse_id = $1 AND connector_id IS NOT DISTINCT FROM $2
		`
		var id int64
		err := tx.QueryRowContext(ctx, findEvse, result.Component.Evse.ID, result.Component.Evse.ConnectorID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no EVSE %d for station %s", ErrAttributeNotFound, result.Component.Evse.ID, stationID)
		}
		if err != nil {
			return nil, fmt.Errorf("repository: find evse for result: %w", err)
		}
		evseDatabaseID = &id
	}

	const find = `
		SELECT va.id, va.value
		FROM variable_attributes va
		JOIN components c ON c.id = va.component_id
		JOIN variables v ON v.id = va.variable_id
		WHERE va.station_id = $1 AND va.type = $2
			AND c.name = $3 AND c.instance IS NOT DISTINCT FROM $4
			AND c.evse_database_id IS NOT DISTINCT FROM $5
			AND v.name = $6 AND v.instance IS NOT DISTINCT FROM $7
	`
	var (
		attributeID int64
		current     sql.NullString
	)
	err = tx.QueryRowContext(ctx, find,
		stationID, string(attrType),
		result.Component.Name, result.Component.Instance, evseDatabaseID,
		result.Variable.Name, result.Variable.Instance).Scan(&attributeID, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: station %s, component %s, variable %s, type %s",
			ErrAttributeNotFound, stationID, result.Component.Name, result.Variable.Name, attrType)
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find attribute for result: %w", err)
	}

	if err := appendStatus(ctx, tx, attributeID, result.NewValue, result.Status, result.StatusInfo, reportedAt); err != nil {
		return nil, err
	}

	value := optStr(current)
	if result.Status == models.SetVariableAccepted {
		value = result.NewValue
	} else {
		accepted, found, err := lastAcceptedValue(ctx, tx, attributeID)
		if err != nil {
			return nil, err
		}
		if found {
			value = accepted
		}
		// No prior accepted value means nothing to roll back to; the live
		// value stays as last known.
	}

	const update = `UPDATE variable_attributes SET value = $1, generated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, update, value, reportedAt, attributeID); err != nil {
		return nil, fmt.Errorf("repository: apply result to attribute %d: %w", attributeID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("repository: commit result transaction: %w", err)
	}

	return r.GetAttributeByID(ctx, attributeID, true)
}

// lastAcceptedValue returns the value of the most recent accepted status
// record, the authoritative rollback target.
func lastAcceptedValue(ctx context.Context, q dbtx, attributeID int64) (*string, bool, error) {
	const query = `
		SELECT value FROM variable_statuses
		WHERE variable_attribute_id = $1 AND status = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var value sql.NullString
	err := q.QueryRowContext(ctx, query, attributeID, string(models.SetVariableAccepted)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("repository: read last accepted value for attribute %d: %w", attributeID, err)
	}
	return optStr(value), true, nil
}

// GetAttributeByID loads one attribute, optionally with its status history.
func (r *DeviceModelRepository) GetAttributeByID(ctx context.Context, id int64, includeStatuses bool) (*models.VariableAttribute, error) {
	const query = `
		SELECT id, station_id, variable_id, component_id, evse_database_id, type, value,
			data_type, mutability, persistent, constant, boot_config_set_id, generated_at
		FROM variable_attributes
		WHERE id = $1
	`
	attr, err := scanAttribute(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrAttributeNotFound, id)
		}
		return nil, err
	}

	if includeStatuses {
		statuses, err := r.listStatuses(ctx, attr.ID)
		if err != nil {
			return nil, err
		}
		attr.Statuses = statuses
	}
	return attr, nil
}

func (r *DeviceModelRepository) listStatuses(ctx context.Context, attributeID int64) ([]models.VariableStatus, error) {
	const query = `
		SELECT id, variable_attribute_id, value, status, status_info, created_at
		FROM variable_statuses
		WHERE variable_attribute_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, attributeID)
	if err != nil {
		return nil, fmt.Errorf("repository: list statuses for attribute %d: %w", attributeID, err)
	}
	defer rows.Close()

	var statuses []models.VariableStatus
	for rows.Next() {
		var (
			st         models.VariableStatus
			value      sql.NullString
			statusInfo sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.VariableAttributeID, &value, &st.Status, &statusInfo, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: scan status: %w", err)
		}
		st.Value = optStr(value)
		st.StatusInfo = optStr(statusInfo)
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// SetBootConfig flags or clears an attribute as pending configuration to be
// sent to the station.
func (r *DeviceModelRepository) SetBootConfig(ctx context.Context, attributeID int64, bootConfigSetID *int64) error {
	const query = `UPDATE variable_attributes SET boot_config_set_id = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, bootConfigSetID, attributeID)
	if err != nil {
		return fmt.Errorf("repository: set boot config on attribute %d: %w", attributeID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrAttributeNotFound, attributeID)
	}
	return nil
}

// ReadAllPendingByStation returns the set-variable payloads for every
// attribute of the station flagged as pending configuration.
func (r *DeviceModelRepository) ReadAllPendingByStation(ctx context.Context, stationID string) ([]models.SetVariableData, error) {
	const query = `
		SELECT va.type, va.value,
			c.name, c.instance, e.evse_id, e.connector_id,
			v.name, v.instance
		FROM variable_attributes va
		JOIN components c ON c.id = va.component_id
		LEFT JOIN evses e ON e.database_id = c.evse_database_id
		JOIN variables v ON v.id = va.variable_id
		WHERE va.station_id = $1 AND va.boot_config_set_id IS NOT NULL
		ORDER BY va.id
	`
	rows, err := r.db.QueryContext(ctx, query, stationID)
	if err != nil {
		return nil, fmt.Errorf("repository: read pending attributes for %s: %w", stationID, err)
	}
	defer rows.Close()

	var pending []models.SetVariableData
	for rows.Next() {
		var (
			data        models.SetVariableData
			value       sql.NullString
			compInst    sql.NullString
			evseID      sql.NullInt64
			connectorID sql.NullInt64
			varInst     sql.NullString
		)
		if err := rows.Scan(&data.AttributeType, &value, &data.Component.Name, &compInst, &evseID, &connectorID, &data.Variable.Name, &varInst); err != nil {
			return nil, fmt.Errorf("repository: scan pending attribute: %w", err)
		}
		if !value.Valid {
			return nil, fmt.Errorf("%w: station %s, component %s, variable %s",
				ErrMissingValue, stationID, data.Component.Name, data.Variable.Name)
		}
		data.AttributeValue = value.String
		data.Component.Instance = optStr(compInst)
		data.Variable.Instance = optStr(varInst)
		if evseID.Valid {
			data.Component.Evse = &models.EvseDescriptor{
				ID:          int(evseID.Int64),
				ConnectorID: optInt(connectorID),
			}
		}
		pending = append(pending, data)
	}
	return pending, rows.Err()
}
