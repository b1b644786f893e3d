package eventbridge

// State is the lifecycle state of the bridge connection.
type State uint32

// Connection states.
const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name so JSON carries "connected" rather than 2.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transition is one recorded state change, delivered to the observer after
// the manager lock is released.
type transition struct {
	from, to State
}
