// Package api implements the HTTP REST API and WebSocket server for Input
// Dock Core.
//
// This package provides:
//   - REST endpoints for the device roster, slots, journal, and focus state
//   - WebSocket hub for real-time device and focus event broadcasts
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API server sits between consumers (overlays, session managers,
// dashboards) and the device manager + focus tracker. Reads come straight
// from in-memory state; lifecycle events flow from the internal event bus to
// WebSocket clients.
//
// # Security
//
// Authentication is optional (security.jwt.enabled) and uses HS256 bearer
// tokens validated against a shared secret. WebSocket connections use
// single-use tickets to prevent token leakage in URLs.
//
// # Graceful Degradation
//
// The server operates without the journal repository; the /journal endpoint
// reports unavailable while everything else keeps working.
package api
