package influxdb

import "errors"

// Sentinels checked with errors.Is. Write failures mostly surface through
// the async error callback instead, since points are batched.
var (
	// ErrNotConnected: operation attempted before Connect or after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed: the initial health probe against the server failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed: a synchronous write path failed.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled: telemetry is switched off in configuration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
