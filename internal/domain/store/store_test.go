package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/codeduel/live-delivery/internal/domain/event"
	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/service/mapper"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func decode(t *testing.T, body string) event.Eventer {
	t.Helper()
	ev, err := event.Decode([]byte(body))
	assert.Equal(t, err, nil)
	return ev
}

func unreadOf(items []model.Notification) int {
	n := 0
	for _, item := range items {
		if !item.Read {
			n++
		}
	}
	return n
}

func TestIngestTwiceYieldsOne(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	ev := decode(t, `{"notificationType":"FRIEND_REQUEST_ACCEPTED","accepterUsername":"alice"}`)

	_, ok := s.Ingest(ev)
	assert.Equal(t, ok, true)
	_, ok = s.Ingest(ev)
	assert.Equal(t, ok, false)

	items := s.List()
	assert.Equal(t, len(items), 1)
	assert.Equal(t, items[0].Title, "Friend Request Accepted")
	assert.Equal(t, items[0].Message, "alice accepted your friend request")
	assert.Equal(t, items[0].Category, model.CategorySuccess)
}

func TestDuplicateIsNotMapped(t *testing.T) {
	clock := newFakeClock()
	mapped := 0
	s := New(WithClock(clock.Now), WithMapper(func(ev event.Eventer) model.Notification {
		mapped++
		return mapper.ToNotification(ev)
	}))

	ev := decode(t, `{"notificationType":"MATCH_COMPLETED","matchId":9}`)
	_, ok := s.Ingest(ev)
	assert.Equal(t, ok, true)
	_, ok = s.Ingest(ev)
	assert.Equal(t, ok, false)
	_, ok = s.Ingest(ev)
	assert.Equal(t, ok, false)

	assert.Equal(t, mapped, 1)
	assert.Equal(t, len(s.List()), 1)
}

func TestIngestDuplicateAcrossDecodes(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	body := `{"notificationType":"USER_RESIGNED","matchId":7,"senderUsername":"bob"}`
	s.Ingest(decode(t, body))
	clock.Advance(300 * time.Millisecond)
	s.Ingest(decode(t, body))

	assert.Equal(t, len(s.List()), 1)
}

func TestIngestUnknownType(t *testing.T) {
	s := New()

	n, ok := s.Ingest(decode(t, `{"notificationType":"SOMETHING_NEW","title":"X","message":"Y"}`))
	assert.Equal(t, ok, true)

	items := s.List()
	assert.Equal(t, len(items), 1)
	assert.Equal(t, items[0].Category, model.CategoryInfo)
	assert.Equal(t, items[0].Title, "X")
	assert.Equal(t, items[0].Message, "Y")
	assert.Equal(t, items[0].ID, n.ID)
}

func TestEvictionKeepsNewest(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	for i := 1; i <= 51; i++ {
		s.Ingest(decode(t, fmt.Sprintf(`{"notificationType":"FRIEND_REQUEST_RECEIVED","senderUsername":"user%d"}`, i)))
		clock.Advance(10 * time.Millisecond)
	}

	items := s.List()
	assert.Equal(t, len(items), 50)
	assert.Equal(t, items[0].Sender(), "user51")
	assert.Equal(t, items[49].Sender(), "user2")

	_, found := model.Snapshot{Notifications: items}.Find(func(n model.Notification) bool {
		return n.Sender() == "user1"
	})
	assert.Equal(t, found, false)
}

func TestRecentDuplicateRejected(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	body := `{"notificationType":"MATCH_COMPLETED","matchId":3}`
	_, ok := s.Ingest(decode(t, body))
	assert.Equal(t, ok, true)

	// next time bucket, so the fingerprint differs, but title+message repeat
	clock.Advance(1500 * time.Millisecond)
	_, ok = s.Ingest(decode(t, body))
	assert.Equal(t, ok, false)

	clock.Advance(2 * time.Second)
	_, ok = s.Ingest(decode(t, body))
	assert.Equal(t, ok, true)
	assert.Equal(t, len(s.List()), 2)
}

// Two genuinely distinct events with identical key fields inside one time bucket
// collapse into one. This is a known approximation of the fingerprint; the bucket
// width is configurable.
func TestBucketConflatesDistinctEvents(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	body := `{"notificationType":"SUBMISSION_RECEIVED","matchId":9,"senderUsername":"bob"}`
	s.Ingest(decode(t, body))
	clock.Advance(100 * time.Millisecond)
	s.Ingest(decode(t, body))
	assert.Equal(t, len(s.List()), 1)

	narrow := New(
		WithClock(clock.Now),
		WithDedupWindow(DefaultDedupWindowSize, 50*time.Millisecond),
		WithRecentDuplicateWindow(0),
	)
	narrow.Ingest(decode(t, body))
	clock.Advance(100 * time.Millisecond)
	narrow.Ingest(decode(t, body))
	assert.Equal(t, len(narrow.List()), 2)
}

func TestDedupWindowEvictsOldest(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now), WithDedupWindow(2, time.Hour), WithRecentDuplicateWindow(0))

	a := decode(t, `{"notificationType":"FRIEND_REQUEST_RECEIVED","senderUsername":"a"}`)
	b := decode(t, `{"notificationType":"FRIEND_REQUEST_RECEIVED","senderUsername":"b"}`)
	c := decode(t, `{"notificationType":"FRIEND_REQUEST_RECEIVED","senderUsername":"c"}`)

	s.Ingest(a)
	s.Ingest(b)
	s.Ingest(c)
	assert.Equal(t, s.Stats().DedupEntries, 2)

	// a fell out of the window, c did not
	_, ok := s.Ingest(a)
	assert.Equal(t, ok, true)
	_, ok = s.Ingest(c)
	assert.Equal(t, ok, false)
}

func TestUnreadCountTracksList(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	check := func() {
		t.Helper()
		assert.Equal(t, s.UnreadCount(), unreadOf(s.List()))
	}

	var ids []string
	for i := 0; i < 5; i++ {
		n, _ := s.Ingest(decode(t, fmt.Sprintf(`{"notificationType":"SUBMISSION_RECEIVED","matchId":1,"senderUsername":"u%d"}`, i)))
		ids = append(ids, n.ID)
		check()
	}
	assert.Equal(t, s.UnreadCount(), 5)

	assert.Equal(t, s.MarkRead(ids[0]), true)
	check()
	assert.Equal(t, s.MarkRead(ids[0]), false)
	assert.Equal(t, s.MarkRead("missing"), false)
	check()

	assert.Equal(t, s.Remove(ids[1]), true)
	check()
	assert.Equal(t, s.Remove(ids[1]), false)
	assert.Equal(t, s.UnreadCount(), 3)

	s.MarkAllRead()
	check()
	assert.Equal(t, s.UnreadCount(), 0)
	assert.Equal(t, len(s.List()), 4)
}

func TestIdentifiersNeverReused(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now), WithMaxNotifications(3))

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		n, ok := s.Ingest(decode(t, fmt.Sprintf(`{"notificationType":"MATCH_STARTED","matchId":%d}`, i)))
		assert.Equal(t, ok, true)
		assert.Equal(t, seen[n.ID], false)
		seen[n.ID] = true
		if i%2 == 0 {
			s.Remove(n.ID)
		}
		clock.Advance(3 * time.Second)
	}
}

func TestClearResetsWindow(t *testing.T) {
	s := New()

	ev := decode(t, `{"notificationType":"MATCH_STARTED","matchId":5}`)
	s.Ingest(ev)
	s.Clear()

	assert.Equal(t, len(s.List()), 0)
	assert.Equal(t, s.Stats().DedupEntries, 0)

	_, ok := s.Ingest(ev)
	assert.Equal(t, ok, true)
}

func TestListenersReceiveOrderedSnapshots(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	var got []model.Snapshot
	s.AddListener(ListenerFunc(func(snap model.Snapshot) {
		got = append(got, snap)
	}))

	n, _ := s.Ingest(decode(t, `{"notificationType":"MATCH_STARTED","matchId":1}`))
	s.MarkRead(n.ID)
	s.MarkRead(n.ID) // no change, no publish
	s.Remove(n.ID)

	assert.Equal(t, len(got), 4)
	assert.Equal(t, got[0].Version, uint64(0))
	assert.Equal(t, len(got[1].Notifications), 1)
	assert.Equal(t, got[1].Unread(), 1)
	assert.Equal(t, got[2].Unread(), 0)
	assert.Equal(t, len(got[3].Notifications), 0)
	assert.Equal(t, got[3].Version, uint64(3))
}

func TestListReturnsCopy(t *testing.T) {
	s := New()
	s.Ingest(decode(t, `{"notificationType":"MATCH_STARTED","matchId":1}`))

	items := s.List()
	items[0].Read = true

	assert.Equal(t, s.UnreadCount(), 1)
}

func TestConcurrentIngest(t *testing.T) {
	s := New(WithMaxNotifications(1000), WithDedupWindow(1000, time.Second))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				own, _ := event.Decode([]byte(fmt.Sprintf(`{"notificationType":"FRIEND_REQUEST_RECEIVED","senderUsername":"w%d-%d"}`, worker, j)))
				s.Ingest(own)
				// every worker also replays a shared event
				shared, _ := event.Decode([]byte(`{"notificationType":"MATCH_STARTED","matchId":42}`))
				s.Ingest(shared)
			}
		}(i)
	}
	wg.Wait()

	items := s.List()
	shared := model.Snapshot{Notifications: items}.Filter(func(n model.Notification) bool {
		return n.MatchID() == 42
	})
	assert.Equal(t, len(shared) >= 1, true)
	assert.Equal(t, s.UnreadCount(), unreadOf(items))
}
