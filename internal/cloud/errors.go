package cloud

import (
	"errors"
	"fmt"
)

// Sentinel errors for cloud API operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuthFailed is returned when the cloud rejects the API key (401/403).
	// The caller must obtain a new key; retrying with the same key cannot succeed.
	ErrAuthFailed = errors.New("cloud: authentication failed")

	// ErrRateLimited is returned when the cloud reports quota exhaustion (429).
	ErrRateLimited = errors.New("cloud: rate limited")

	// ErrTransient is returned for network failures and 5xx responses.
	// Safe to retry on the next refresh cycle.
	ErrTransient = errors.New("cloud: transient error")

	// ErrMalformedResponse is returned when a response body cannot be parsed.
	// It wraps ErrTransient so retry classification treats it as recoverable.
	ErrMalformedResponse = fmt.Errorf("cloud: malformed response: %w", ErrTransient)
)
