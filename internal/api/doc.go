// Package api implements the dashboard's HTTP relay and WebSocket server.
//
// This package provides:
//   - REST endpoints for bridge status and control, notifications, and the
//     registry login session
//   - WebSocket hub that pushes live flow events, notification snapshots and
//     bridge state changes to browsers
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server never talks to the broker or the registry itself. It reads from
// the notification channel and calls into the dashboard through the Bridge
// and Sessions interfaces; the dashboard pushes into the Hub.
//
// # WebSocket channels
//
//	flow.event      every event received by the bridge
//	flows.summary   registry flow summary, re-sent after a reconnect
//	notifications   full notification list after each change
//	bridge.state    bridge status after each state change
//
// Subscribing to notifications or bridge.state immediately delivers the
// current value.
//
// # Graceful Degradation
//
// Bridge and Sessions are optional. Without them the corresponding routes
// answer 503 and the rest of the server keeps working.
package api
