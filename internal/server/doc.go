// Package server provides the HTTP server for the dashboard and its API.
//
// This package is internal to statsboard and handles all HTTP concerns:
//
//   - Dashboard serving: the embedded HTML page at "/"
//   - Snapshots: JSON at "/api/panels", plain text at "/api/panels.txt"
//   - Streams: Server-Sent Events at "/api/sse", WebSocket at "/api/ws"
//   - Probes: "/health", "/ready" and "/live"
//
// Routing uses chi. The server supports graceful shutdown via context
// cancellation, with a 5-second timeout for in-flight requests.
package server
