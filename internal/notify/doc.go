// Package notify holds the dashboard's transient user-facing messages.
//
// A Channel is the only owner of the notification list. Producers (the event
// dispatcher, bridge state observers, HTTP handlers) call Add; the UI reads
// snapshots through List or Subscribe and refers to entries by id only.
//
//	ch := notify.New()
//	id := ch.Add(notify.KindSuccess, "Flow created")
//	ch.Dismiss(id)
//	ch.Dismiss(id) // no-op
package notify
