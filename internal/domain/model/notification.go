package model

import (
	"time"

	"github.com/codeduel/live-delivery/internal/domain/event"
)

type Category string

const (
	CategorySuccess Category = "success"
	CategoryError   Category = "error"
	CategoryWarning Category = "warning"
	CategoryInfo    Category = "info"
)

// Notification is the unit held by the notification store.
type Notification struct {
	ID        string        `json:"id"`
	Category  Category      `json:"type"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"timestamp"`
	Read      bool          `json:"read"`
	Metadata  event.Eventer `json:"-"`
}

// Kind returns the discriminant of the server event the notification came from.
func (n Notification) Kind() event.Kind {
	if n.Metadata == nil {
		return ""
	}
	return n.Metadata.GetKind()
}

// MatchID returns the match the notification correlates to, or 0.
func (n Notification) MatchID() int64 {
	if n.Metadata == nil {
		return 0
	}
	return event.MatchIDOf(n.Metadata)
}

// Sender returns the username that triggered the notification, or "".
func (n Notification) Sender() string {
	if n.Metadata == nil {
		return ""
	}
	return event.SenderOf(n.Metadata)
}

// Snapshot is an immutable copy of the store published after every mutation.
// Notifications are ordered newest first.
type Snapshot struct {
	Version       uint64
	Notifications []Notification
}

// Unread is recomputed from the list on every call.
func (s Snapshot) Unread() int {
	n := 0
	for _, item := range s.Notifications {
		if !item.Read {
			n++
		}
	}
	return n
}

// Find returns the first notification matching pred.
func (s Snapshot) Find(pred func(Notification) bool) (Notification, bool) {
	for _, item := range s.Notifications {
		if pred(item) {
			return item, true
		}
	}
	return Notification{}, false
}

// Filter returns every notification matching pred, newest first.
func (s Snapshot) Filter(pred func(Notification) bool) []Notification {
	var res []Notification
	for _, item := range s.Notifications {
		if pred(item) {
			res = append(res, item)
		}
	}
	return res
}
