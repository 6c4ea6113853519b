package models

// ConnectionState is the lifecycle state of the push-channel connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateFailed is terminal until the next manual connect
	StateFailed
)

// String returns the string representation of a ConnectionState
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConnectionChange is published on every connection state transition.
type ConnectionChange struct {
	State    ConnectionState
	Previous ConnectionState
	// Attempt is the number of consecutive failed connection attempts so far
	Attempt int
	Reason  string
	Err     error
}
