package model

// ConnectionState is the health of the live channel as seen by consumers.
type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
	Reconnecting ConnectionState = "reconnecting"
	Error        ConnectionState = "error"
)

func (s ConnectionState) String() string { return string(s) }

// Label is the human text shown by status indicators.
func (s ConnectionState) Label() string {
	switch s {
	case Connected:
		return "Connected"
	case Connecting:
		return "Connecting..."
	case Reconnecting:
		return "Reconnecting..."
	case Error:
		return "Connection Error"
	default:
		return "Disconnected"
	}
}
