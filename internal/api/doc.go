// Package api implements the HTTP REST API and WebSocket server for Lumen
// Core.
//
// This package provides:
//   - REST endpoints for the device directory, states, commands and scenes
//   - Refresh and scheduler control endpoints
//   - WebSocket hub for real-time state change broadcasts
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between user interfaces and the coordinator. Reads are
// served from the coordinator's in-memory directory and state store and never
// spend cloud quota; commands and forced scene refreshes go through the
// coordinator, which owns the rate limiter.
//
// State changes reach WebSocket clients through the Hub, which the
// coordinator drives directly as one of its publishers.
//
// # Security
//
// Authentication uses bearer JWT tokens. WebSocket connections use single-use
// tickets so tokens never appear in URLs. When no JWT secret is configured
// the API runs open, intended for LAN-only deployments.
package api
