package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeduel/live-delivery/infra/metrics"
	"github.com/codeduel/live-delivery/internal/domain/event"
	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/service/mapper"
)

// Listener observes every snapshot the store publishes. Notify runs while the store
// lock is held, so it must not block and must not call back into the store.
type Listener interface {
	Notify(snap model.Snapshot)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(model.Snapshot)

func (f ListenerFunc) Notify(snap model.Snapshot) { f(snap) }

// Store is the single owner of the notification list and the dedup window.
type Store struct {
	mu sync.RWMutex

	items   []model.Notification // newest first
	version uint64

	window       *window
	bucket       time.Duration
	maxLen       int
	recentWindow time.Duration

	listeners []Listener

	now      func() time.Time
	newID    func() string
	mapEvent func(event.Eventer) model.Notification
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(opts ...Option) *Store {
	s := &Store{
		bucket:       DefaultDedupBucket,
		maxLen:       DefaultMaxNotifications,
		recentWindow: DefaultRecentDuplicateWindow,
		now:          time.Now,
		newID:        uuid.NewString,
		mapEvent:     mapper.ToNotification,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.window == nil {
		s.window = newWindow(DefaultDedupWindowSize)
	}
	return s
}

// AddListener registers l and immediately hands it the current snapshot.
func (s *Store) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, l)
	l.Notify(s.snapshotLocked())
}

// Ingest prepends ev as a notification unless it duplicates an event already seen.
// The fingerprint is checked before ev is mapped. The returned bool reports acceptance.
func (s *Store) Ingest(ev event.Eventer) (model.Notification, bool) {
	at := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	fp := FingerprintOf(ev, at, s.bucket)
	if s.window.observe(fp) {
		s.metrics.ObserveIngest(metrics.ResultDuplicate)
		s.logger.Debug("NOTIFICATION_DUPLICATE", slog.String("fingerprint", string(fp)))
		return model.Notification{}, false
	}

	n := s.mapEvent(ev)

	if s.hasRecentLocked(n.Title, n.Message, at) {
		s.metrics.ObserveIngest(metrics.ResultRecentDuplicate)
		s.logger.Debug("NOTIFICATION_RECENT_DUPLICATE",
			slog.String("title", n.Title),
			slog.String("kind", string(n.Kind())),
		)
		return model.Notification{}, false
	}

	n.ID = s.newID()
	n.CreatedAt = at
	n.Read = false

	items := make([]model.Notification, 0, min(len(s.items)+1, s.maxLen))
	items = append(items, n)
	items = append(items, s.items...)
	if len(items) > s.maxLen {
		items = items[:s.maxLen]
	}
	s.items = items

	s.metrics.ObserveIngest(metrics.ResultAccepted)
	s.publishLocked()

	s.logger.Debug("NOTIFICATION_ACCEPTED",
		slog.String("id", n.ID),
		slog.String("kind", string(n.Kind())),
		slog.Int64("match_id", n.MatchID()),
	)

	return n, true
}

func (s *Store) hasRecentLocked(title, message string, at time.Time) bool {
	for _, item := range s.items {
		if at.Sub(item.CreatedAt) >= s.recentWindow {
			// newest first: everything further down is older still
			return false
		}
		if item.Title == title && item.Message == message {
			return true
		}
	}
	return false
}

// List returns a copy of the notifications, newest first.
func (s *Store) List() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copyLocked()
}

// Snapshot returns the current list together with its version.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

func (s *Store) Get(id string) (model.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], true
	}
	return model.Notification{}, false
}

// MarkRead flags one notification as read. Unknown ids are ignored.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 || s.items[i].Read {
		return false
	}

	items := s.copyLocked()
	items[i].Read = true
	s.items = items
	s.publishLocked()

	return true
}

func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.copyLocked()
	changed := false
	for i := range items {
		if !items[i].Read {
			items[i].Read = true
			changed = true
		}
	}
	if !changed {
		return
	}

	s.items = items
	s.publishLocked()
}

// Remove deletes one notification. Unknown ids are ignored.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return false
	}

	items := make([]model.Notification, 0, len(s.items)-1)
	items = append(items, s.items[:i]...)
	items = append(items, s.items[i+1:]...)
	s.items = items
	s.publishLocked()

	return true
}

// Clear empties the list and forgets every fingerprint, so a replayed event after
// logout is shown again.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window.purge()
	if len(s.items) == 0 {
		return
	}

	s.items = nil
	s.publishLocked()
}

// UnreadCount is derived from the list on every call, never cached.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, item := range s.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// Stats is a cheap summary for status endpoints.
type Stats struct {
	Total        int
	Unread       int
	DedupEntries int
	Version      uint64
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshotLocked()
	return Stats{
		Total:        len(snap.Notifications),
		Unread:       snap.Unread(),
		DedupEntries: s.window.len(),
		Version:      snap.Version,
	}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) copyLocked() []model.Notification {
	if len(s.items) == 0 {
		return []model.Notification{}
	}
	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) snapshotLocked() model.Snapshot {
	return model.Snapshot{Version: s.version, Notifications: s.copyLocked()}
}

// publishLocked bumps the version and fans the new snapshot out. Callers hold mu.
func (s *Store) publishLocked() {
	s.version++
	snap := s.snapshotLocked()

	s.metrics.SetUnread(snap.Unread())
	for _, l := range s.listeners {
		l.Notify(snap)
	}
}
