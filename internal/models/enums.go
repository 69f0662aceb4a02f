package models

import "strings"

// AttributeType identifies one value slot of a variable.
type AttributeType string

const (
	AttributeActual AttributeType = "Actual"
	AttributeTarget AttributeType = "Target"
	AttributeMinSet AttributeType = "MinSet"
	AttributeMaxSet AttributeType = "MaxSet"
)

// Mutability describes how an attribute may be accessed.
type Mutability string

const (
	MutabilityReadOnly  Mutability = "ReadOnly"
	MutabilityWriteOnly Mutability = "WriteOnly"
	MutabilityReadWrite Mutability = "ReadWrite"
)

// DataType declares the wire representation of a variable value.
type DataType string

const (
	DataTypeString       DataType = "string"
	DataTypeDecimal      DataType = "decimal"
	DataTypeInteger      DataType = "integer"
	DataTypeDateTime     DataType = "dateTime"
	DataTypeBoolean      DataType = "boolean"
	DataTypeOptionList   DataType = "OptionList"
	DataTypeSequenceList DataType = "SequenceList"
	DataTypeMemberList   DataType = "MemberList"
)

// SetVariableStatus is a station's verdict on a configuration change.
type SetVariableStatus string

const (
	SetVariableAccepted         SetVariableStatus = "Accepted"
	SetVariableRejected         SetVariableStatus = "Rejected"
	SetVariableUnknownComponent SetVariableStatus = "UnknownComponent"
	SetVariableUnknownVariable  SetVariableStatus = "UnknownVariable"
	SetVariableNotSupported     SetVariableStatus = "NotSupportedAttributeType"
	SetVariableRebootRequired   SetVariableStatus = "RebootRequired"
)

// AvailabilityState is the derived operational status of an EVSE or station.
type AvailabilityState string

const (
	StateAvailable   AvailabilityState = "Available"
	StateOccupied    AvailabilityState = "Occupied"
	StateReserved    AvailabilityState = "Reserved"
	StateUnavailable AvailabilityState = "Unavailable"
	StateFaulted     AvailabilityState = "Faulted"
)

// AvailabilityStateVariable names the variable the aggregator writes.
const AvailabilityStateVariable = "AvailabilityState"

// Component names used for derived statuses.
const (
	ChargingStationComponent = "ChargingStation"
	EvseComponent            = "EVSE"
)

// DefaultComponentVariables are seeded for every freshly discovered component.
// A station that does not report them is assumed to report true/read-only.
var DefaultComponentVariables = []string{"Present", "Available", "Enabled"}

// ParseAvailabilityState maps a raw connector status string to a known state.
// Unrecognized strings return false and are ignored by the aggregator.
func ParseAvailabilityState(raw string) (AvailabilityState, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "available":
		return StateAvailable, true
	case "occupied":
		return StateOccupied, true
	case "reserved":
		return StateReserved, true
	case "unavailable":
		return StateUnavailable, true
	case "faulted":
		return StateFaulted, true
	default:
		return "", false
	}
}
