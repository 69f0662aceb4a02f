package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voltgrid/internal/models"
)

// dbtx is the slice of *sql.DB / *sql.Tx the queries need, so the same
// helpers run inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LinkWriter records component-variable associations without blocking the
// caller. Losing a link under a race is acceptable; losing attribute data is
// not, which is why links travel on this side channel instead of the report
// transaction.
type LinkWriter interface {
	EnqueueLink(componentID, variableID int64)
}

// DeviceModelRepository reconciles incoming device-model reports against the
// stored Station/EVSE/Component/Variable graph.
type DeviceModelRepository struct {
	db     *sql.DB
	logger *zap.Logger
	links  LinkWriter
}

// NewDeviceModelRepository returns the repository.
func NewDeviceModelRepository(db *sql.DB, logger *zap.Logger) *DeviceModelRepository {
	return &DeviceModelRepository{db: db, logger: logger}
}

// SetLinkWriter installs the async association writer. Without one,
// associations are written inline, best-effort.
func (r *DeviceModelRepository) SetLinkWriter(w LinkWriter) {
	r.links = w
}

// CreateOrUpdateByReport applies one (component, variable, attributes) report
// for a station: finds or creates the EVSE, component, variable and
// characteristics, seeds default variables for a freshly discovered
// component, then finds-or-creates/updates each attribute slot. The whole
// sequence runs in a single transaction; a duplicate attribute type in the
// input fails before anything is written. Returns the current attribute list
// for the (station, component, variable) triple.
func (r *DeviceModelRepository) CreateOrUpdateByReport(ctx context.Context, stationID string, report models.Report, generatedAt time.Time) ([]models.VariableAttribute, error) {
	seen := make(map[models.AttributeType]struct{}, len(report.Attributes))
	for _, attr := range report.Attributes {
		attrType := attr.AttributeTypeOrDefault()
		if _, dup := seen[attrType]; dup {
			return nil, fmt.Errorf("%w: type %q appears more than once", ErrDuplicateAttributeTypes, attrType)
		}
		seen[attrType] = struct{}{}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("repository: begin report transaction: %w", err)
	}
	defer tx.Rollback()

	if err := touchStation(ctx, tx, stationID, generatedAt); err != nil {
		return nil, err
	}

	evse, err := resolveEvse(ctx, tx, report.Component.Evse)
	if err != nil {
		return nil, err
	}

	component, componentCreated, err := resolveComponent(ctx, tx, report.Component, evse)
	if err != nil {
		return nil, err
	}

	variable, err := resolveVariable(ctx, tx, report.Variable)
	if err != nil {
		return nil, err
	}
	pendingLinks := [][2]int64{{component.ID, variable.ID}}

	var dataType *models.DataType
	if report.Characteristics != nil {
		if err := upsertCharacteristics(ctx, tx, variable.ID, *report.Characteristics); err != nil {
			return nil, err
		}
		dataType = &report.Characteristics.DataType
	}

	if componentCreated {
		seedLinks, err := seedDefaultVariables(ctx, tx, stationID, component, evse, generatedAt)
		if err != nil {
			return nil, err
		}
		pendingLinks = append(pendingLinks, seedLinks...)
	}

	for _, input := range report.Attributes {
		if err := upsertAttribute(ctx, tx, stationID, component, variable, input, dataType, generatedAt); err != nil {
			return nil, err
		}
	}

	attrs, err := listAttributesForTriple(ctx, tx, stationID, component.ID, variable.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("repository: commit report transaction: %w", err)
	}

	// Links go out after commit so the referenced rows are visible and a
	// failed link can never taint the report itself.
	for _, l := range pendingLinks {
		r.link(ctx, l[0], l[1])
	}

	return attrs, nil
}

// LinkComponentVariable records that a variable is applicable to a component.
// Idempotent set-insertion.
func (r *DeviceModelRepository) LinkComponentVariable(ctx context.Context, componentID, variableID int64) error {
	const q = `
		INSERT INTO component_variables (component_id, variable_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, q, componentID, variableID)
	return err
}

func (r *DeviceModelRepository) link(ctx context.Context, componentID, variableID int64) {
	if r.links != nil {
		r.links.EnqueueLink(componentID, variableID)
		return
	}
	if err := r.LinkComponentVariable(ctx, componentID, variableID); err != nil {
		r.logger.Warn("component-variable link failed",
			zap.Int64("component_id", componentID),
			zap.Int64("variable_id", variableID),
			zap.Error(err))
	}
}

func touchStation(ctx context.Context, q dbtx, stationID string, seenAt time.Time) error {
	const query = `
		INSERT INTO stations (id, last_seen, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			last_seen = EXCLUDED.last_seen,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := q.ExecContext(ctx, query, stationID, seenAt, seenAt, seenAt); err != nil {
		return fmt.Errorf("repository: touch station %s: %w", stationID, err)
	}
	return nil
}

// resolveEvse finds or creates the EVSE identified by (id, connectorId). A
// nil connector id denotes the EVSE as a whole and is a distinct identity
// from any numbered connector. A lost insert race resolves to the surviving
// row instead of surfacing the constraint violation.
func resolveEvse(ctx context.Context, q dbtx, desc *models.EvseDescriptor) (*models.Evse, error) {
	if desc == nil {
		return nil, nil
	}

	const find = `
		SELECT database_id FROM evses
		WHERE evse_id = $1 AND connector_id IS NOT DISTINCT FROM $2
	`
	evse := &models.Evse{EvseID: desc.ID, ConnectorID: desc.ConnectorID}

	err := q.QueryRowContext(ctx, find, desc.ID, desc.ConnectorID).Scan(&evse.DatabaseID)
	if err == nil {
		return evse, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repository: find evse %d: %w", desc.ID, err)
	}

	const insert = `
		INSERT INTO evses (evse_id, connector_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
		RETURNING database_id
	`
	err = q.QueryRowContext(ctx, insert, desc.ID, desc.ConnectorID).Scan(&evse.DatabaseID)
	if err == nil {
		return evse, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repository: create evse %d: %w", desc.ID, err)
	}

	if err := q.QueryRowContext(ctx, find, desc.ID, desc.ConnectorID).Scan(&evse.DatabaseID); err != nil {
		return nil, fmt.Errorf("repository: re-read evse %d after conflict: %w", desc.ID, err)
	}
	return evse, nil
}

// resolveComponent finds or creates the component by its full
// (name, instance, EVSE reference) identity, so each EVSE of a station keeps
// its own scoped component row. A component first reported without an EVSE
// scope is adopted by a later scoped report: the unscoped row is re-parented
// in place instead of creating a sibling.
func resolveComponent(ctx context.Context, q dbtx, desc models.ComponentDescriptor, evse *models.Evse) (*models.Component, bool, error) {
	var evseDatabaseID *int64
	if evse != nil {
		evseDatabaseID = &evse.DatabaseID
	}

	const find = `
		SELECT id FROM components
		WHERE name = $1 AND instance IS NOT DISTINCT FROM $2
			AND evse_database_id IS NOT DISTINCT FROM $3
	`
	component := &models.Component{Name: desc.Name, Instance: desc.Instance, EvseDatabaseID: evseDatabaseID}

	err := q.QueryRowContext(ctx, find, desc.Name, desc.Instance, evseDatabaseID).Scan(&component.ID)
	if err == nil {
		return component, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("repository: find component %q: %w", desc.Name, err)
	}

	if evseDatabaseID != nil {
		const findUnscoped = `
			SELECT id FROM components
			WHERE name = $1 AND instance IS NOT DISTINCT FROM $2 AND evse_database_id IS NULL
		`
		err = q.QueryRowContext(ctx, findUnscoped, desc.Name, desc.Instance).Scan(&component.ID)
		if err == nil {
			const reparent = `UPDATE components SET evse_database_id = $1 WHERE id = $2`
			if _, err := q.ExecContext(ctx, reparent, *evseDatabaseID, component.ID); err != nil {
				return nil, false, fmt.Errorf("repository: re-parent component %q: %w", desc.Name, err)
			}
			return component, false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("repository: find unscoped component %q: %w", desc.Name, err)
		}
	}

	const insert = `
		INSERT INTO components (name, instance, evse_database_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
		RETURNING id
	`
	err = q.QueryRowContext(ctx, insert, desc.Name, desc.Instance, evseDatabaseID).Scan(&component.ID)
	if err == nil {
		return component, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("repository: create component %q: %w", desc.Name, err)
	}

	// Lost a first-report race; the surviving row is the component.
	if err := q.QueryRowContext(ctx, find, desc.Name, desc.Instance, evseDatabaseID).Scan(&component.ID); err != nil {
		return nil, false, fmt.Errorf("repository: re-read component %q after conflict: %w", desc.Name, err)
	}
	return component, false, nil
}

func resolveVariable(ctx context.Context, q dbtx, desc models.VariableDescriptor) (*models.Variable, error) {
	const find = `
		SELECT id FROM variables
		WHERE name = $1 AND instance IS NOT DISTINCT FROM $2
	`
	variable := &models.Variable{Name: desc.Name, Instance: desc.Instance}

	err := q.QueryRowContext(ctx, find, desc.Name, desc.Instance).Scan(&variable.ID)
	if err == nil {
		return variable, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repository: find variable %q: %w", desc.Name, err)
	}

	const insert = `
		INSERT INTO variables (name, instance)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
		RETURNING id
	`
	err = q.QueryRowContext(ctx, insert, desc.Name, desc.Instance).Scan(&variable.ID)
	if err == nil {
		return variable, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repository: create variable %q: %w", desc.Name, err)
	}

	if err := q.QueryRowContext(ctx, find, desc.Name, desc.Instance).Scan(&variable.ID); err != nil {
		return nil, fmt.Errorf("repository: re-read variable %q after conflict: %w", desc.Name, err)
	}
	return variable, nil
}

// upsertCharacteristics keeps at most one characteristics row per variable:
// first report creates it, later reports update every field in place.
func upsertCharacteristics(ctx context.Context, q dbtx, variableID int64, c models.CharacteristicsDescriptor) error {
	const query = `
		INSERT INTO variable_characteristics
			(variable_id, unit, data_type, min_limit, max_limit, values_list, supports_monitoring)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (variable_id) DO UPDATE SET
			unit = EXCLUDED.unit,
			data_type = EXCLUDED.data_type,
			min_limit = EXCLUDED.min_limit,
			max_limit = EXCLUDED.max_limit,
			values_list = EXCLUDED.values_list,
			supports_monitoring = EXCLUDED.supports_monitoring
	`
	_, err := q.ExecContext(ctx, query, variableID, c.Unit, string(c.DataType), c.MinLimit, c.MaxLimit, c.ValuesList, c.SupportsMonitoring)
	if err != nil {
		return fmt.Errorf("repository: upsert characteristics for variable %d: %w", variableID, err)
	}
	return nil
}

// seedDefaultVariables creates the Present/Available/Enabled baseline for a
// freshly discovered component. A station that omits these is assumed to
// report them as true and read-only until told otherwise. Runs at most once
// per (station, component): the attribute inserts are idempotent, and the
// caller only invokes this when the component row was actually created.
func seedDefaultVariables(ctx context.Context, q dbtx, stationID string, component *models.Component, evse *models.Evse, generatedAt time.Time) ([][2]int64, error) {
	var evseDatabaseID *int64
	if evse != nil {
		evseDatabaseID = &evse.DatabaseID
	}

	const insert = `
		INSERT INTO variable_attributes
			(station_id, variable_id, component_id, evse_database_id, type, value, data_type, mutability, persistent, constant, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT DO NOTHING
	`

	links := make([][2]int64, 0, len(models.DefaultComponentVariables))
	for _, name := range models.DefaultComponentVariables {
		variable, err := resolveVariable(ctx, q, models.VariableDescriptor{Name: name})
		if err != nil {
			return nil, err
		}
		links = append(links, [2]int64{component.ID, variable.ID})

		_, err = q.ExecContext(ctx, insert,
			stationID, variable.ID, component.ID, evseDatabaseID,
			string(models.AttributeActual), "true", string(models.DataTypeBoolean),
			string(models.MutabilityReadOnly), false, false, generatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: seed default variable %q: %w", name, err)
		}
	}
	return links, nil
}

// upsertAttribute finds or creates the attribute slot keyed by
// (station, variable, component, type). On update, value, data type and
// timestamp move forward while mutability/persistent/constant keep their
// stored values unless the input carries them explicitly.
func upsertAttribute(ctx context.Context, q dbtx, stationID string, component *models.Component, variable *models.Variable, input models.AttributeInput, dataType *models.DataType, generatedAt time.Time) error {
	attrType := input.AttributeTypeOrDefault()

	const find = `
		SELECT id, data_type, mutability, persistent, constant
		FROM variable_attributes
		WHERE station_id = $1 AND variable_id = $2 AND component_id = $3 AND type = $4
	`

	var (
		id             int64
		storedDataType sql.NullString
		mutability     string
		persistent     bool
		constant       bool
	)
	err := q.QueryRowContext(ctx, find, stationID, variable.ID, component.ID, string(attrType)).
		Scan(&id, &storedDataType, &mutability, &persistent, &constant)

	if errors.Is(err, sql.ErrNoRows) {
		created, insertErr := insertAttribute(ctx, q, stationID, component, variable, input, attrType, dataType, generatedAt)
		if insertErr != nil {
			return insertErr
		}
		if created {
			return nil
		}
		// Concurrent first report won the insert; treat it as the existing
		// slot and update it below.
		err = q.QueryRowContext(ctx, find, stationID, variable.ID, component.ID, string(attrType)).
			Scan(&id, &storedDataType, &mutability, &persistent, &constant)
	}
	if err != nil {
		return fmt.Errorf("repository: find attribute %s/%s: %w", variable.Name, attrType, err)
	}

	newDataType := storedDataType
	if dataType != nil {
		newDataType = sql.NullString{String: string(*dataType), Valid: true}
	}
	if input.Mutability != nil {
		mutability = string(*input.Mutability)
	}
	if input.Persistent != nil {
		persistent = *input.Persistent
	}
	if input.Constant != nil {
		constant = *input.Constant
	}

	const update = `
		UPDATE variable_attributes
		SET value = $1,
			data_type = $2,
			mutability = $3,
			persistent = $4,
			constant = $5,
			evse_database_id = $6,
			generated_at = $7
		WHERE id = $8
	`
	_, err = q.ExecContext(ctx, update, input.Value, newDataType, mutability, persistent, constant, component.EvseDatabaseID, generatedAt, id)
	if err != nil {
		return fmt.Errorf("repository: update attribute %s/%s: %w", variable.Name, attrType, err)
	}

	return appendStatus(ctx, q, id, input.Value, models.SetVariableAccepted, nil, generatedAt)
}

func insertAttribute(ctx context.Context, q dbtx, stationID string, component *models.Component, variable *models.Variable, input models.AttributeInput, attrType models.AttributeType, dataType *models.DataType, generatedAt time.Time) (bool, error) {
	mutability := models.MutabilityReadWrite
	if input.Mutability != nil {
		mutability = *input.Mutability
	}
	persistent := input.Persistent != nil && *input.Persistent
	constant := input.Constant != nil && *input.Constant

	var dt *string
	if dataType != nil {
		s := string(*dataType)
		dt = &s
	}

	const insert = `
		INSERT INTO variable_attributes
			(station_id, variable_id, component_id, evse_database_id, type, value, data_type, mutability, persistent, constant, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT DO NOTHING
		RETURNING id
	`
	var id int64
	err := q.QueryRowContext(ctx, insert,
		stationID, variable.ID, component.ID, component.EvseDatabaseID,
		string(attrType), input.Value, dt, string(mutability), persistent, constant, generatedAt).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("repository: create attribute %s/%s: %w", variable.Name, attrType, err)
	}

	return true, appendStatus(ctx, q, id, input.Value, models.SetVariableAccepted, nil, generatedAt)
}

func appendStatus(ctx context.Context, q dbtx, attributeID int64, value *string, status models.SetVariableStatus, statusInfo *string, at time.Time) error {
	const insert = `
		INSERT INTO variable_statuses (variable_attribute_id, value, status, status_info, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := q.ExecContext(ctx, insert, attributeID, value, string(status), statusInfo, at); err != nil {
		return fmt.Errorf("repository: append status for attribute %d: %w", attributeID, err)
	}
	return nil
}

func listAttributesForTriple(ctx context.Context, q dbtx, stationID string, componentID, variableID int64) ([]models.VariableAttribute, error) {
	const query = `
		SELECT id, station_id, variable_id, component_id, evse_database_id, type, value,
			data_type, mutability, persistent, constant, boot_config_set_id, generated_at
		FROM variable_attributes
		WHERE station_id = $1 AND component_id = $2 AND variable_id = $3
		ORDER BY type
	`
	rows, err := q.QueryContext(ctx, query, stationID, componentID, variableID)
	if err != nil {
		return nil, fmt.Errorf("repository: list attributes: %w", err)
	}
	defer rows.Close()

	var attrs []models.VariableAttribute
	for rows.Next() {
		attr, err := scanAttribute(rows)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, *attr)
	}
	return attrs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttribute(row rowScanner) (*models.VariableAttribute, error) {
	var (
		attr       models.VariableAttribute
		evseDB     sql.NullInt64
		value      sql.NullString
		dataType   sql.NullString
		bootConfig sql.NullInt64
	)
	err := row.Scan(&attr.ID, &attr.StationID, &attr.VariableID, &attr.ComponentID, &evseDB,
		&attr.Type, &value, &dataType, &attr.Mutability, &attr.Persistent, &attr.Constant,
		&bootConfig, &attr.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("repository: scan attribute: %w", err)
	}
	attr.EvseDatabaseID = optInt64(evseDB)
	attr.Value = optStr(value)
	attr.DataType = optDataType(dataType)
	attr.BootConfigSetID = optInt64(bootConfig)
	return &attr, nil
}

func optStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func optInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func optInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func optFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func optDataType(ns sql.NullString) *models.DataType {
	if !ns.Valid {
		return nil
	}
	dt := models.DataType(ns.String)
	return &dt
}
