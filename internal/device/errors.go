package device

import "errors"

// Domain-specific errors for device operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceNotFound is returned when a device lookup fails.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrNoSnapshot is returned when no persisted directory snapshot exists.
	ErrNoSnapshot = errors.New("device: no snapshot available")

	// ErrInvalidState is returned when a state payload fails basic validation.
	ErrInvalidState = errors.New("device: invalid state")
)
