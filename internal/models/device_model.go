package models

import "time"

// Station represents a charging station, keyed by its external identifier.
type Station struct {
	ID              string    `db:"id" json:"id"`
	Vendor          string    `db:"vendor" json:"vendor,omitempty"`
	Model           string    `db:"model" json:"model,omitempty"`
	FirmwareVersion string    `db:"firmware_version" json:"firmwareVersion,omitempty"`
	LastSeen        time.Time `db:"last_seen" json:"lastSeen"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// Evse is an EVSE or, when ConnectorID is set, one connector of it.
// DatabaseID is the surrogate key; EvseID is the protocol-assigned id.
type Evse struct {
	DatabaseID  int64  `db:"database_id" json:"databaseId"`
	EvseID      int    `db:"evse_id" json:"id"`
	ConnectorID *int   `db:"connector_id" json:"connectorId,omitempty"`
}

// Component is a named logical/physical part of a station's device model,
// optionally scoped to one EVSE. Identity is (name, instance, evse reference).
type Component struct {
	ID             int64   `db:"id" json:"-"`
	Name           string  `db:"name" json:"name"`
	Instance       *string `db:"instance" json:"instance,omitempty"`
	EvseDatabaseID *int64  `db:"evse_database_id" json:"-"`
	Evse           *Evse   `db:"-" json:"evse,omitempty"`
}

// Variable is a named configuration or status point. Identity is
// (name, instance); association to components is many-to-many.
type Variable struct {
	ID       int64   `db:"id" json:"-"`
	Name     string  `db:"name" json:"name"`
	Instance *string `db:"instance" json:"instance,omitempty"`
}

// VariableCharacteristics declares the data type and constraints of a
// variable. At most one row exists per variable.
type VariableCharacteristics struct {
	ID                 int64    `db:"id" json:"-"`
	VariableID         int64    `db:"variable_id" json:"-"`
	Unit               *string  `db:"unit" json:"unit,omitempty"`
	DataType           DataType `db:"data_type" json:"dataType"`
	MinLimit           *float64 `db:"min_limit" json:"minLimit,omitempty"`
	MaxLimit           *float64 `db:"max_limit" json:"maxLimit,omitempty"`
	ValuesList         *string  `db:"values_list" json:"valuesList,omitempty"`
	SupportsMonitoring bool     `db:"supports_monitoring" json:"supportsMonitoring"`
}

// VariableAttribute is the live value of one
// (station, component, variable, attribute type) slot.
type VariableAttribute struct {
	ID              int64            `db:"id" json:"id"`
	StationID       string           `db:"station_id" json:"stationId"`
	VariableID      int64            `db:"variable_id" json:"-"`
	ComponentID     int64            `db:"component_id" json:"-"`
	EvseDatabaseID  *int64           `db:"evse_database_id" json:"-"`
	Type            AttributeType    `db:"type" json:"type"`
	Value           *string          `db:"value" json:"value,omitempty"`
	DataType        *DataType        `db:"data_type" json:"dataType,omitempty"`
	Mutability      Mutability       `db:"mutability" json:"mutability"`
	Persistent      bool             `db:"persistent" json:"persistent"`
	Constant        bool             `db:"constant" json:"constant"`
	BootConfigSetID *int64           `db:"boot_config_set_id" json:"bootConfigSetId,omitempty"`
	GeneratedAt     time.Time        `db:"generated_at" json:"generatedAt"`
	Component       *Component       `db:"-" json:"component,omitempty"`
	Variable        *Variable        `db:"-" json:"variable,omitempty"`
	Statuses        []VariableStatus `db:"-" json:"statuses,omitempty"`
}

// VariableStatus is one immutable history record of a value/acceptance event
// for a variable attribute. Rows are append-only, ordered by CreatedAt.
type VariableStatus struct {
	ID                  int64             `db:"id" json:"id"`
	VariableAttributeID int64             `db:"variable_attribute_id" json:"-"`
	Value               *string           `db:"value" json:"value,omitempty"`
	Status              SetVariableStatus `db:"status" json:"status"`
	StatusInfo          *string           `db:"status_info" json:"statusInfo,omitempty"`
	CreatedAt           time.Time         `db:"created_at" json:"createdAt"`
}
