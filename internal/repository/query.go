package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"voltgrid/internal/models"
)

// AttributeQuery is the typed filter for attribute lookups. Zero-valued
// fields do not constrain the result. It replaces ad-hoc query-object
// construction so callers never deal in SQL vocabulary.
type AttributeQuery struct {
	StationID         string
	ComponentName     string
	ComponentInstance string
	EvseID            *int
	ConnectorID       *int
	VariableName      string
	VariableInstance  string
	Type              *models.AttributeType
	Value             string
	IncludeStatuses   bool
}

// ReadAllByQuery fetches attributes matching the filter, with their component,
// variable and EVSE loaded, and optionally their status history.
func (r *DeviceModelRepository) ReadAllByQuery(ctx context.Context, query AttributeQuery) ([]models.VariableAttribute, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT va.id, va.station_id, va.variable_id, va.component_id, va.evse_database_id, va.type, va.value,
			va.data_type, va.mutability, va.persistent, va.constant, va.boot_config_set_id, va.generated_at,
			c.name, c.instance, v.name, v.instance, e.database_id, e.evse_id, e.connector_id
		FROM variable_attributes va
		JOIN components c ON c.id = va.component_id
		JOIN variables v ON v.id = va.variable_id
		LEFT JOIN evses e ON e.database_id = c.evse_database_id
		WHERE 1 = 1`)

	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		fmt.Fprintf(&sb, " AND %s = $%d", clause, len(args))
	}

	if query.StationID != "" {
		add("va.station_id", query.StationID)
	}
	if query.ComponentName != "" {
		add("c.name", query.ComponentName)
	}
	if query.ComponentInstance != "" {
		add("c.instance", query.ComponentInstance)
	}
	if query.EvseID != nil {
		add("e.evse_id", *query.EvseID)
	}
	if query.ConnectorID != nil {
		add("e.connector_id", *query.ConnectorID)
	}
	if query.VariableName != "" {
		add("v.name", query.VariableName)
	}
	if query.VariableInstance != "" {
		add("v.instance", query.VariableInstance)
	}
	if query.Type != nil {
		add("va.type", string(*query.Type))
	}
	if query.Value != "" {
		add("va.value", query.Value)
	}
	sb.WriteString(" ORDER BY va.id")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("repository: query attributes: %w", err)
	}
	defer rows.Close()

	var attrs []models.VariableAttribute
	for rows.Next() {
		attr, err := scanAttributeWithRelations(rows)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, *attr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if query.IncludeStatuses {
		for i := range attrs {
			statuses, err := r.listStatuses(ctx, attrs[i].ID)
			if err != nil {
				return nil, err
			}
			attrs[i].Statuses = statuses
		}
	}

	return attrs, nil
}

// FindCharacteristicsByVariable returns the characteristics declared for the
// variable identified by (name, instance), or nil when none were reported.
func (r *DeviceModelRepository) FindCharacteristicsByVariable(ctx context.Context, name string, instance *string) (*models.VariableCharacteristics, error) {
	const query = `
		SELECT vc.id, vc.variable_id, vc.unit, vc.data_type, vc.min_limit, vc.max_limit, vc.values_list, vc.supports_monitoring
		FROM variable_characteristics vc
		JOIN variables v ON v.id = vc.variable_id
		WHERE v.name = $1 AND v.instance IS NOT DISTINCT FROM $2
	`
	var (
		vc         models.VariableCharacteristics
		unit       sql.NullString
		minLimit   sql.NullFloat64
		maxLimit   sql.NullFloat64
		valuesList sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, name, instance).Scan(
		&vc.ID, &vc.VariableID, &unit, &vc.DataType, &minLimit, &maxLimit, &valuesList, &vc.SupportsMonitoring)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find characteristics for %q: %w", name, err)
	}
	vc.Unit = optStr(unit)
	vc.MinLimit = optFloat(minLimit)
	vc.MaxLimit = optFloat(maxLimit)
	vc.ValuesList = optStr(valuesList)
	return &vc, nil
}

func scanAttributeWithRelations(rows *sql.Rows) (*models.VariableAttribute, error) {
	var (
		attr       models.VariableAttribute
		evseDB     sql.NullInt64
		value      sql.NullString
		dataType   sql.NullString
		bootConfig sql.NullInt64

		component models.Component
		compInst  sql.NullString
		variable  models.Variable
		varInst   sql.NullString

		linkedEvseDB sql.NullInt64
		evseID       sql.NullInt64
		connectorID  sql.NullInt64
	)
	err := rows.Scan(&attr.ID, &attr.StationID, &attr.VariableID, &attr.ComponentID, &evseDB,
		&attr.Type, &value, &dataType, &attr.Mutability, &attr.Persistent, &attr.Constant,
		&bootConfig, &attr.GeneratedAt,
		&component.Name, &compInst, &variable.Name, &varInst, &linkedEvseDB, &evseID, &connectorID)
	if err != nil {
		return nil, fmt.Errorf("repository: scan attribute row: %w", err)
	}

	attr.EvseDatabaseID = optInt64(evseDB)
	attr.Value = optStr(value)
	attr.DataType = optDataType(dataType)
	attr.BootConfigSetID = optInt64(bootConfig)

	component.ID = attr.ComponentID
	component.Instance = optStr(compInst)
	// The EVSE link comes from the joined row, not from the attribute's own
	// reference: an attribute written before its component was adopted by an
	// EVSE still carries the older value.
	component.EvseDatabaseID = optInt64(linkedEvseDB)
	if evseID.Valid {
		component.Evse = &models.Evse{
			DatabaseID:  linkedEvseDB.Int64,
			EvseID:      int(evseID.Int64),
			ConnectorID: optInt(connectorID),
		}
	}
	attr.Component = &component

	variable.ID = attr.VariableID
	variable.Instance = optStr(varInst)
	attr.Variable = &variable

	return &attr, nil
}
