package model

// ConnectionState is the lifecycle state of a chain stream.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateLive
	StateDegraded
	StateReconnecting
	StateFatalFailure
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateDegraded:
		return "degraded"
	case StateReconnecting:
		return "reconnecting"
	case StateFatalFailure:
		return "fatal_failure"
	default:
		return "unknown"
	}
}
