// Package device defines the device model for Lumen Core.
//
// A Device is the immutable description of one cloud light: identity,
// product SKU, and the capabilities it advertised at discovery. DeviceState
// is the mutable side: power, brightness, colour, scene, tracked separately
// and merged by pure functions so concurrent refreshes and optimistic
// command updates compose predictably.
//
// # State Sources
//
// Every DeviceState carries a Source tag:
//
//   - SourceAPI: last confirmed by a cloud state query
//   - SourceOptimistic: locally assumed after a command (never rolled back)
//   - SourceStale: a previous value kept because a refresh failed
//
// Group pseudo-devices have no queryable state; their Source is always
// optimistic.
//
// # Persistence
//
// Repository snapshots the discovered directory and scene caches to SQLite
// so a restart can serve device metadata without spending cloud quota.
package device
