// Package server provides the HTTP status API for a running dashboard
// synchronizer.
//
// Routes, served by a gin engine:
//
//   - GET  /api/health: liveness and session identity
//   - GET  /api/dashboard: every resource's status plus the overall warming flag
//   - GET  /api/forecast?horizon=N: revenue projection once KPI data is present
//   - POST /api/refetch/:resource: manual retry of one resource
//   - GET  /api/sse: Server-Sent Events stream of resource updates
//
// The server shuts down gracefully when its context is cancelled, with a
// 5-second timeout for in-flight requests.
package server
