// Package dashboard wires the live event bridge to the rest of the
// dashboard core.
//
// A Dashboard owns no sockets itself. It:
//   - resolves the broker endpoint and topic prefix (configured, or
//     discovered from the registry's realtime settings)
//   - connects the eventbridge.Manager with its event dispatcher
//   - relays every event to browsers and turns flow lifecycle events into
//     short-lived notifications
//   - mirrors notification and bridge state changes to the WebSocket hub
//   - re-sends the registry flow summary after the bridge recovers
//   - keeps the registry login session used as the broker password
//
// Lifecycle:
//
//	d, err := dashboard.New(deps)
//	err = d.Start(ctx)
//	defer d.Close()
package dashboard
