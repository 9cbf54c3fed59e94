package lpmarshaller

import (
	"encoding/json"

	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/handler/marshaller"
)

// Response is a long-poll answer. Version is echoed back by the client as ?since=.
type Response struct {
	Version uint64                        `json:"version"`
	Unread  int                           `json:"unread"`
	Events  []marshaller.NotificationView `json:"events"`
}

// MarshallEvents renders the whole list of snap; clients replace what they hold.
func MarshallEvents(snap model.Snapshot) ([]byte, error) {
	res := Response{
		Version: snap.Version,
		Unread:  snap.Unread(),
		Events:  make([]marshaller.NotificationView, 0, len(snap.Notifications)),
	}

	for _, n := range snap.Notifications {
		res.Events = append(res.Events, marshaller.MarshallNotification(n))
	}

	return json.Marshal(res)
}
