package model

// ConnectionState is the low-level transport/protocol state of the hub connection.
type ConnectionState int32

const (
	ConnectionReady ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionReady:
		return "READY"
	case ConnectionConnecting:
		return "CONNECTING"
	case ConnectionConnected:
		return "CONNECTED"
	case ConnectionDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// OperationalState is the caller's intent for the hub connection.
type OperationalState int32

const (
	OperationalClosed OperationalState = iota
	OperationalOpen
)

func (s OperationalState) String() string {
	if s == OperationalOpen {
		return "OPEN"
	}
	return "CLOSED"
}

// SessionState is derived from observed SessionInfo and SessionData updates.
type SessionState int32

const (
	SessionUnknown SessionState = iota
	SessionNone
	SessionLive
)

func (s SessionState) String() string {
	switch s {
	case SessionNone:
		return "NO_SESSION"
	case SessionLive:
		return "LIVE_SESSION"
	default:
		return "UNKNOWN"
	}
}

// Description is the human readable text shown on the status page.
func (s SessionState) Description() string {
	switch s {
	case SessionNone:
		return "No live session"
	case SessionLive:
		return "Live session in progress"
	default:
		return "Waiting for session information"
	}
}
