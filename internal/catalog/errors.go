package catalog

import "errors"

// Domain errors for the catalog package.
//
// They fall into four groups the registry boundary maps to status codes:
//
//	validation: ErrMissingField, ErrInvalidID, ErrUnknownField, ErrInvalidValue
//	conflict:   ErrRecordExists, ErrSlotOccupied
//	not found:  ErrRecordNotFound, ErrSlotEmpty
//	persistence (logged only): ErrPersistence
//
// Use errors.Is, or the IsValidation / IsConflict / IsNotFound helpers.
var (
	// ErrMissingField is returned when a required field is absent from a write.
	ErrMissingField = errors.New("catalog: missing required field")

	// ErrInvalidID is returned when the id field is not a non-negative integer.
	ErrInvalidID = errors.New("catalog: invalid id")

	// ErrUnknownField is returned when a lookup names a field that is not searchable.
	ErrUnknownField = errors.New("catalog: unknown field")

	// ErrInvalidValue is returned when a lookup value cannot match its field.
	ErrInvalidValue = errors.New("catalog: invalid value")

	// ErrTrailingData is returned when a body holds more than one JSON value.
	ErrTrailingData = errors.New("catalog: unexpected data after JSON object")

	// ErrUnknownCollection is returned for a collection or slot name outside the closed set.
	ErrUnknownCollection = errors.New("catalog: unknown collection")

	// ErrRecordExists is returned when creating a record whose id is taken.
	ErrRecordExists = errors.New("catalog: record already exists")

	// ErrSlotOccupied is returned when creating into a singleton slot that holds a record.
	ErrSlotOccupied = errors.New("catalog: slot occupied")

	// ErrRecordNotFound is returned when updating or reading an unknown id.
	ErrRecordNotFound = errors.New("catalog: record not found")

	// ErrSlotEmpty is returned when updating a singleton slot that holds nothing.
	ErrSlotEmpty = errors.New("catalog: slot empty")

	// ErrPersistence wraps snapshot failures. It is logged, never returned
	// from a mutation.
	ErrPersistence = errors.New("catalog: persistence failed")

	// ErrNoSnapshot is returned by a Snapshotter that has nothing saved yet.
	ErrNoSnapshot = errors.New("catalog: no snapshot")
)

// IsValidation reports whether err rejects a malformed write or lookup.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrUnknownCollection)
}

// IsConflict reports whether err is a create against an existing id or occupied slot.
func IsConflict(err error) bool {
	return errors.Is(err, ErrRecordExists) || errors.Is(err, ErrSlotOccupied)
}

// IsNotFound reports whether err is an update against a missing id or empty slot.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrSlotEmpty)
}
