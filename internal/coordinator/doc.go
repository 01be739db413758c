// Package coordinator orchestrates the device fleet against the cloud API.
//
// It owns the discovered device directory, the per-device state store, the
// scene caches and the refresh cycle, and it is the only component that talks
// to the cloud transport. Everything above it (HTTP API, MQTT, telemetry)
// consumes its snapshots.
//
// # Architecture
//
//	               ┌──────────────┐
//	API / MQTT ──▶ │  Coordinator │ ──▶ Transport (cloud.Client)
//	               │              │
//	               │  Directory   │ ◀── Discover (ListDevices)
//	               │  StateStore  │ ◀── Refresh  (GetDeviceState fan-out)
//	               │  SceneCache  │ ◀── Scenes   (ListScenes / ListDIYScenes)
//	               └──────┬───────┘
//	                      │ snapshots
//	                      ▼
//	          Publisher (MQTT) / Telemetry (InfluxDB)
//
// # State precedence
//
// Refresh merges confirmed cloud readings over previous state, preserving
// optimistic scene and segment values the cloud never reports. A failed
// fetch keeps the previous values tagged stale. Commands always apply their
// optimistic effect, even when the send fails; the cloud applies commands
// asynchronously, so a send error does not prove the device missed it.
//
// # Group devices
//
// Group pseudo-devices accept commands but have no queryable state. They are
// excluded from refresh entirely and their state is only ever optimistic.
//
// # Reauthentication
//
// An auth failure from any cloud call aborts the operation and raises the
// reauth signal through the Publisher exactly once; the signal re-arms after
// the next successful cloud call.
package coordinator
