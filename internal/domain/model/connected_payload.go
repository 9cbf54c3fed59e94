package model

import "time"

// ConnectedPayload describes the broker session negotiated by the CONNECTED frame.
type ConnectedPayload struct {
	Server            string        `json:"server,omitempty"`
	Version           string        `json:"version,omitempty"`
	Session           string        `json:"session,omitempty"`
	HeartbeatIncoming time.Duration `json:"heartbeat_incoming"`
	HeartbeatOutgoing time.Duration `json:"heartbeat_outgoing"`
}
