package models

// EvseDescriptor references an EVSE (or one of its connectors) in a report.
type EvseDescriptor struct {
	ID          int  `json:"id"`
	ConnectorID *int `json:"connectorId,omitempty"`
}

// ComponentDescriptor identifies a component in an incoming report.
type ComponentDescriptor struct {
	Name     string          `json:"name"`
	Instance *string         `json:"instance,omitempty"`
	Evse     *EvseDescriptor `json:"evse,omitempty"`
}

// VariableDescriptor identifies a variable in an incoming report.
type VariableDescriptor struct {
	Name     string  `json:"name"`
	Instance *string `json:"instance,omitempty"`
}

// CharacteristicsDescriptor carries variable characteristics from a report.
type CharacteristicsDescriptor struct {
	Unit               *string  `json:"unit,omitempty"`
	DataType           DataType `json:"dataType"`
	MinLimit           *float64 `json:"minLimit,omitempty"`
	MaxLimit           *float64 `json:"maxLimit,omitempty"`
	ValuesList         *string  `json:"valuesList,omitempty"`
	SupportsMonitoring bool     `json:"supportsMonitoring"`
}

// AttributeInput is one (type, value, ...) tuple in a report. Nil fields were
// omitted by the station; omitted flags keep their stored values on update.
type AttributeInput struct {
	Type       *AttributeType `json:"type,omitempty"`
	Value      *string        `json:"value,omitempty"`
	Mutability *Mutability    `json:"mutability,omitempty"`
	Persistent *bool          `json:"persistent,omitempty"`
	Constant   *bool          `json:"constant,omitempty"`
}

// AttributeTypeOrDefault returns the explicit type or Actual.
func (a AttributeInput) AttributeTypeOrDefault() AttributeType {
	if a.Type != nil {
		return *a.Type
	}
	return AttributeActual
}

// Report is one incremental device-model report for a single
// (component, variable) pair.
type Report struct {
	Component       ComponentDescriptor        `json:"component"`
	Variable        VariableDescriptor         `json:"variable"`
	Characteristics *CharacteristicsDescriptor `json:"characteristics,omitempty"`
	Attributes      []AttributeInput           `json:"attributes"`
}

// SetVariableResult is a station's acceptance or rejection of a
// configuration change for one attribute.
type SetVariableResult struct {
	Component     ComponentDescriptor `json:"component"`
	Variable      VariableDescriptor  `json:"variable"`
	AttributeType *AttributeType      `json:"attributeType,omitempty"`
	Status        SetVariableStatus   `json:"status"`
	StatusInfo    *string             `json:"statusInfo,omitempty"`
	NewValue      *string             `json:"newValue,omitempty"`
}

// SetVariableData is one pending configuration entry to be sent to a station.
type SetVariableData struct {
	Component      ComponentDescriptor `json:"component"`
	Variable       VariableDescriptor  `json:"variable"`
	AttributeType  AttributeType       `json:"attributeType"`
	AttributeValue string              `json:"attributeValue"`
}

// ConnectorStatusBatch is an ordered list of raw per-connector statuses for a
// station, optionally scoped to one EVSE.
type ConnectorStatusBatch struct {
	EvseID      *int     `json:"evseId,omitempty"`
	ConnectorID *int     `json:"connectorId,omitempty"`
	Statuses    []string `json:"statuses"`
}
