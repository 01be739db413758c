package coordinator

import "errors"

// Domain-specific errors for coordinator operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuthRequired is returned when the cloud rejects the API key.
	// Operator action is required; the operation is not retried.
	ErrAuthRequired = errors.New("coordinator: cloud authentication required")

	// ErrSetupFailed is returned when discovery fails for any reason other
	// than authentication.
	ErrSetupFailed = errors.New("coordinator: discovery failed")

	// ErrSceneNotFound is returned when a scene activation names a scene
	// absent from the device's scene list.
	ErrSceneNotFound = errors.New("coordinator: scene not found")
)
