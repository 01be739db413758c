// Package cloud implements the HTTP transport for the upstream device cloud API.
//
// The cloud API is the single source of truth for device discovery, state and
// control. Every outbound request passes through a shared RateLimiter before
// it touches the network, because the cloud enforces strict per-minute and
// per-day quotas and answers over-quota traffic with 429.
//
// # Architecture
//
//	┌──────────────┐     Acquire()     ┌──────────────┐
//	│    Client    │──────────────────▶│  RateLimiter │
//	│              │◀──────────────────│ (two windows)│
//	└──────┬───────┘      admit        └──────────────┘
//	       │ HTTPS
//	       ▼
//	┌──────────────┐
//	│  Cloud API   │  /user/devices, /device/state,
//	│              │  /device/control, /device/scenes
//	└──────────────┘
//
// # Error Classification
//
// Callers never match on error strings. Failures are classified by HTTP
// status into sentinel errors checked with errors.Is:
//
//   - 401/403        → ErrAuthFailed (API key invalid or revoked)
//   - 429            → ErrRateLimited (quota headers adopted when present)
//   - 5xx / network  → ErrTransient (safe to retry next cycle)
//   - unparseable    → ErrMalformedResponse (wraps ErrTransient)
//
// # Thread Safety
//
// Client and RateLimiter are safe for concurrent use. The RateLimiter's
// windows are shared across all callers, so concurrent refresh fetches and
// user commands drain the same quota.
package cloud
