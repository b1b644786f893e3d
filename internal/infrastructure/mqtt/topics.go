package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is where the registry publishes flow events.
const DefaultTopicPrefix = "go-nmos/flows/events"

// Topics provides builders for registry event topics.
//
// The registry publishes every flow event twice:
//
//	topics := mqtt.Topics{}
//	topics.All("go-nmos/flows/events")         // "go-nmos/flows/events/all"
//	topics.Flow("go-nmos/flows/events", "f1")  // "go-nmos/flows/events/flow/f1"
type Topics struct{}

// All returns the fan-in topic carrying every event under prefix.
func (Topics) All(prefix string) string {
	return fmt.Sprintf("%s/all", trimPrefix(prefix))
}

// Flow returns the per-flow topic for flowID under prefix.
func (Topics) Flow(prefix, flowID string) string {
	return fmt.Sprintf("%s/flow/%s", trimPrefix(prefix), flowID)
}

// AllFlows returns a wildcard matching every per-flow topic under prefix.
func (Topics) AllFlows(prefix string) string {
	return fmt.Sprintf("%s/flow/+", trimPrefix(prefix))
}

// FlowID extracts the flow id from a per-flow topic, or "" when topic is
// not a per-flow topic under prefix.
func (Topics) FlowID(prefix, topic string) string {
	base := trimPrefix(prefix) + "/flow/"
	if !strings.HasPrefix(topic, base) {
		return ""
	}
	id := strings.TrimPrefix(topic, base)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

func trimPrefix(prefix string) string {
	return strings.TrimRight(prefix, "/")
}
