package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboundEvent is the envelope published for every accepted notification so
// companion processes (desktop notifier, audit log) can follow the live feed.
type OutboundEvent struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Username  string        `json:"username"`
	Kind      string        `json:"kind"`
	Payload   *Notification `json:"payload"`
	Timestamp int64         `json:"timestamp"`
}

// NewOutboundEvent wraps n for publishing.
func NewOutboundEvent(username string, n Notification) *OutboundEvent {
	return &OutboundEvent{
		ID:        uuid.NewString(),
		Source:    "live-delivery",
		Username:  username,
		Kind:      string(n.Kind()),
		Payload:   &n,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (e *OutboundEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
