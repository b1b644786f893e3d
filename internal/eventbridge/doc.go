// Package eventbridge keeps one live subscription to the registry's event
// feed on an MQTT broker and fans parsed events out to a single handler.
//
// A Manager owns at most one Connection. Connect is non-blocking and
// idempotent while connected; transport failures are handled internally
// with a fixed-period reconnect loop, so callers only ever see state:
//
//	Idle -> Connecting -> Connected -> (Disconnected -> Connecting -> Connected)*
//	     -> Disconnecting -> Idle      on Disconnect
//	Failed                             on a construction-time error
//
// Callers never receive errors for connectivity problems. The only error
// path is misconfiguration detected before any network activity (an empty
// topic prefix, an unusable endpoint URL, a dialer that refuses the options).
//
// # Usage
//
//	m := eventbridge.New(eventbridge.Config{Tokens: store})
//	m.SetLogger(logger.With("component", "eventbridge"))
//	h, err := m.Connect("ws://localhost:9001", "go-nmos/flows/events",
//	    func(ev eventbridge.Event) {
//	        hub.Broadcast("flow.event", ev.Raw)
//	    })
//	if err != nil {
//	    return err
//	}
//	defer m.Disconnect()
//
// Events are delivered one at a time in arrival order. Frames that are not
// UTF-8 JSON are dropped and counted in Status.
package eventbridge
