package store

import (
	"log/slog"
	"time"

	"github.com/codeduel/live-delivery/infra/metrics"
	"github.com/codeduel/live-delivery/internal/domain/event"
	"github.com/codeduel/live-delivery/internal/domain/model"
)

const (
	DefaultMaxNotifications      = 50
	DefaultDedupWindowSize       = 100
	DefaultDedupBucket           = time.Second
	DefaultRecentDuplicateWindow = 2 * time.Second
)

// Option defines a functional configuration type for the Store.
type Option func(*Store)

// WithMaxNotifications caps the list; the oldest entries are dropped first.
func WithMaxNotifications(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

// WithDedupWindow sets the fingerprint capacity and the time bucket width.
func WithDedupWindow(size int, bucket time.Duration) Option {
	return func(s *Store) {
		s.window = newWindow(size)
		if bucket > 0 {
			s.bucket = bucket
		}
	}
}

// WithRecentDuplicateWindow sets how far back an identical title+message is rejected.
func WithRecentDuplicateWindow(d time.Duration) Option {
	return func(s *Store) {
		s.recentWindow = d
	}
}

// WithClock replaces time.Now, used by tests to drive time buckets.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator replaces the uuid based identifier source.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// WithMapper replaces the event classification applied to accepted events.
func WithMapper(fn func(event.Eventer) model.Notification) Option {
	return func(s *Store) {
		if fn != nil {
			s.mapEvent = fn
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}
