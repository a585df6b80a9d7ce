package registrar

import "errors"

var (
	// ErrUnreachable is returned when a cycle exhausted its retry budget.
	// It is never fatal: the peer keeps running and tries again later.
	ErrUnreachable = errors.New("registrar: catalog unreachable")

	// ErrInvalidTarget is returned when a target names neither a valid
	// collection nor a valid slot.
	ErrInvalidTarget = errors.New("registrar: invalid target")

	// ErrNoRecord is returned when the registrar has no record to publish.
	ErrNoRecord = errors.New("registrar: record is required")
)
