package service

import "errors"

var (
	// ErrValidation marks malformed input, such as a missing device ID.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownDevice marks a heartbeat for an unprovisioned device when
	// auto-creation is disabled.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrUnauthorized marks a heartbeat carrying a wrong device key.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvariantViolation marks an event set that breaks the per-device
	// ordering, alternation, or single-open-interval rules.
	ErrInvariantViolation = errors.New("event log invariant violation")
)
