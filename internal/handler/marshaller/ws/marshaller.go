package wsmarshaller

import (
	"encoding/json"
	"time"

	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/handler/marshaller"
)

// WSEvent is the envelope of every frame on the local stream.
type WSEvent struct {
	Event   string `json:"event"` // "snapshot"
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

func MarshallSnapshot(snap model.Snapshot) ([]byte, error) {
	return json.Marshal(&WSEvent{
		Event:   "snapshot",
		SentAt:  time.Now().UnixMilli(),
		Payload: marshaller.MarshallSnapshot(snap),
	})
}
