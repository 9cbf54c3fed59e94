package marshaller

import (
	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/service/consumer"
)

// NotificationView is the JSON shape of a stored notification for local clients.
type NotificationView struct {
	ID        string         `json:"id"`
	Type      model.Category `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp int64          `json:"timestamp"`
	Read      bool           `json:"read"`
	Kind      string         `json:"kind,omitempty"`
	MatchID   int64          `json:"match_id,omitempty"`
	Sender    string         `json:"sender,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SnapshotView is one published store state.
type SnapshotView struct {
	Version       uint64             `json:"version"`
	Unread        int                `json:"unread"`
	Badge         string             `json:"badge"`
	Notifications []NotificationView `json:"notifications"`
}

// MarshallNotification flattens n, keeping the raw server payload as metadata.
func MarshallNotification(n model.Notification) NotificationView {
	v := NotificationView{
		ID:        n.ID,
		Type:      n.Category,
		Title:     n.Title,
		Message:   n.Message,
		Timestamp: n.CreatedAt.UnixMilli(),
		Read:      n.Read,
		Kind:      string(n.Kind()),
		MatchID:   n.MatchID(),
		Sender:    n.Sender(),
	}
	if n.Metadata != nil {
		v.Metadata = n.Metadata.GetRaw()
	}
	return v
}

func MarshallNotifications(items []model.Notification) []NotificationView {
	res := make([]NotificationView, 0, len(items))
	for _, n := range items {
		res = append(res, MarshallNotification(n))
	}
	return res
}

func MarshallSnapshot(snap model.Snapshot) SnapshotView {
	unread := snap.Unread()
	return SnapshotView{
		Version:       snap.Version,
		Unread:        unread,
		Badge:         consumer.BadgeLabel(unread),
		Notifications: MarshallNotifications(snap.Notifications),
	}
}
