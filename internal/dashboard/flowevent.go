package dashboard

import (
	"encoding/json"

	"github.com/nerrad567/nmos-dashboard/internal/notify"
)

// Flow lifecycle event names published by the registry.
const (
	FlowCreated     = "created"
	FlowUpdated     = "updated"
	FlowDeleted     = "deleted"
	FlowHardDeleted = "hard_deleted"
)

// FlowEvent is the registry's flow change message.
type FlowEvent struct {
	Event     string          `json:"event"`
	FlowID    string          `json:"flow_id"`
	Flow      json.RawMessage `json:"flow,omitempty"`
	Diff      json.RawMessage `json:"diff,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// decodeFlowEvent reads a FlowEvent from raw. It fails for non-objects and
// for objects without an event name.
func decodeFlowEvent(raw []byte) (FlowEvent, bool) {
	var fe FlowEvent
	if err := json.Unmarshal(raw, &fe); err != nil {
		return FlowEvent{}, false
	}
	if fe.Event == "" {
		return FlowEvent{}, false
	}
	return fe, true
}

// label returns the flow's label when the event carries one, else its id.
func (fe FlowEvent) label() string {
	var flow struct {
		Label string `json:"label"`
	}
	if len(fe.Flow) > 0 && json.Unmarshal(fe.Flow, &flow) == nil && flow.Label != "" {
		return flow.Label
	}
	if fe.FlowID != "" {
		return fe.FlowID
	}
	return "unknown flow"
}

// notification returns the kind and text shown for fe. ok is false for
// events that should not notify.
func (fe FlowEvent) notification() (kind notify.Kind, message string, ok bool) {
	switch fe.Event {
	case FlowCreated:
		return notify.KindSuccess, "Flow created: " + fe.label(), true
	case FlowUpdated:
		return notify.KindSuccess, "Flow updated: " + fe.label(), true
	case FlowDeleted:
		return notify.KindWarning, "Flow deleted: " + fe.label(), true
	case FlowHardDeleted:
		return notify.KindWarning, "Flow permanently deleted: " + fe.label(), true
	}
	return "", "", false
}
