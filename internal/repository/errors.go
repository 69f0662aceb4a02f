package repository

import "errors"

var (
	// ErrDuplicateAttributeTypes rejects a report carrying two attribute
	// entries with the same type. Nothing is persisted in that case.
	ErrDuplicateAttributeTypes = errors.New("all variable attributes in a report must have different types")

	// ErrAttributeNotFound is returned when a set-variable result references
	// an attribute that does not exist in the store.
	ErrAttributeNotFound = errors.New("variable attribute not found")

	// ErrMissingValue is returned when a pending attribute has no value and
	// therefore cannot be turned into a set-variable payload.
	ErrMissingValue = errors.New("variable attribute value must be present")

	// ErrStationNotFound is returned for credential operations against an
	// unknown station.
	ErrStationNotFound = errors.New("station not found")
)
