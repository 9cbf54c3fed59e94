package consumer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/codeduel/live-delivery/internal/domain/event"
	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/domain/store"
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

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeTimers records scheduled callbacks; nothing runs until Fire.
type fakeTimers struct {
	mu      sync.Mutex
	pending []*fakeTimer
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	ft.pending = append(ft.pending, t)
	return t
}

func (ft *fakeTimers) Fire() {
	ft.mu.Lock()
	var due []*fakeTimer
	for _, t := range ft.pending {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	ft.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (ft *fakeTimers) scheduled() []*fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]*fakeTimer(nil), ft.pending...)
}

func newStore(clock *fakeClock) *store.Store {
	return store.New(store.WithClock(clock.Now))
}

func ingest(t *testing.T, st *store.Store, body string) model.Notification {
	t.Helper()
	ev, err := event.Decode([]byte(body))
	assert.Equal(t, err, nil)
	n, ok := st.Ingest(ev)
	assert.Equal(t, ok, true)
	return n
}

func friendRequest(sender string) string {
	return fmt.Sprintf(`{"notificationType":"FRIEND_REQUEST_RECEIVED","senderUsername":%q}`, sender)
}

func TestToastMarksReadOnDisplay(t *testing.T) {
	st := newStore(newFakeClock())
	timers := &fakeTimers{}
	feed := NewToastFeed(st, WithToastTimers(timers.AfterFunc))

	ingest(t, st, friendRequest("alice"))
	feed.Reconcile(context.Background(), st.Snapshot())

	toasts := feed.Toasts()
	assert.Equal(t, len(toasts), 1)
	assert.Equal(t, toasts[0].Sender, "alice")
	assert.Equal(t, toasts[0].Title, "New Friend Request")
	assert.Equal(t, st.UnreadCount(), 0)
	assert.Equal(t, len(st.List()), 1)
}

func TestToastShowsOnlyNewest(t *testing.T) {
	st := newStore(newFakeClock())
	timers := &fakeTimers{}
	feed := NewToastFeed(st, WithToastTimers(timers.AfterFunc))

	for _, who := range []string{"a", "b", "c", "d", "e"} {
		ingest(t, st, friendRequest(who))
	}
	feed.Reconcile(context.Background(), st.Snapshot())

	assert.Equal(t, len(feed.Toasts()), DefaultVisibleToasts)
	assert.Equal(t, st.UnreadCount(), 2)
	assert.Equal(t, len(timers.scheduled()), DefaultVisibleToasts)
}

func TestToastDisplayedOnce(t *testing.T) {
	st := newStore(newFakeClock())
	timers := &fakeTimers{}
	feed := NewToastFeed(st, WithToastTimers(timers.AfterFunc))

	ingest(t, st, friendRequest("alice"))
	feed.Reconcile(context.Background(), st.Snapshot())
	// the mark-read mutation publishes a new snapshot with the same notification
	feed.Reconcile(context.Background(), st.Snapshot())

	assert.Equal(t, len(feed.Toasts()), 1)
	assert.Equal(t, len(timers.scheduled()), 1)
}

func TestToastTimerDismissRemovesFromStore(t *testing.T) {
	st := newStore(newFakeClock())
	timers := &fakeTimers{}
	feed := NewToastFeed(st, WithToastTimers(timers.AfterFunc), WithDismissAfter(2*time.Second))

	changes := 0
	feed.OnChange(func() { changes++ })

	ingest(t, st, friendRequest("alice"))
	feed.Reconcile(context.Background(), st.Snapshot())
	assert.Equal(t, timers.scheduled()[0].d, 2*time.Second)

	timers.Fire()

	assert.Equal(t, len(feed.Toasts()), 0)
	assert.Equal(t, len(st.List()), 0)
	assert.Equal(t, changes, 2)
}

func TestToastManualDismiss(t *testing.T) {
	st := newStore(newFakeClock())
	timers := &fakeTimers{}
	feed := NewToastFeed(st, WithToastTimers(timers.AfterFunc))

	n := ingest(t, st, friendRequest("alice"))
	feed.Reconcile(context.Background(), st.Snapshot())
	feed.Dismiss(n.ID)

	assert.Equal(t, len(st.List()), 0)
	assert.Equal(t, timers.scheduled()[0].stopped, true)

	// unknown ids are ignored
	feed.Dismiss("missing")
}

func TestToastCloseCancelsTimers(t *testing.T) {
	st := newStore(newFakeClock())
	timers := &fakeTimers{}
	feed := NewToastFeed(st, WithToastTimers(timers.AfterFunc))

	ingest(t, st, friendRequest("alice"))
	feed.Reconcile(context.Background(), st.Snapshot())
	feed.Close()
	timers.Fire()

	assert.Equal(t, len(st.List()), 1)
	assert.Equal(t, len(feed.Toasts()), 0)

	ingest(t, st, friendRequest("bob"))
	feed.Reconcile(context.Background(), st.Snapshot())
	assert.Equal(t, len(feed.Toasts()), 0)
}

func TestNewToast(t *testing.T) {
	warning := model.Notification{
		ID:       "1",
		Category: model.CategoryWarning,
		Title:    "Heads up",
		Metadata: &event.UnknownEvent{Type: "SERVER_NOTICE"},
	}
	toast := NewToast(warning)
	assert.Equal(t, toast.Category, model.CategoryInfo)
	assert.Equal(t, toast.Sender, systemSender)

	resigned := model.Notification{
		ID:       "2",
		Category: model.CategorySuccess,
		Metadata: &event.UserResignedEvent{MatchID: 4, SenderUsername: "bob"},
	}
	toast = NewToast(resigned)
	assert.Equal(t, toast.Category, model.CategorySuccess)
	assert.Equal(t, toast.Sender, "bob")
}

func TestBadgeLabel(t *testing.T) {
	cases := map[int]string{0: "", 1: "1", 9: "9", 10: "9+", 250: "9+"}
	for n, want := range cases {
		assert.Equal(t, BadgeLabel(n), want)
	}
}

func TestBadgeFollowsStore(t *testing.T) {
	st := newStore(newFakeClock())
	badge := NewBadge(st)

	changes := 0
	badge.OnChange(func() { changes++ })

	for i := 0; i < 12; i++ {
		ingest(t, st, friendRequest(fmt.Sprintf("user%d", i)))
	}
	badge.Reconcile(context.Background(), st.Snapshot())
	assert.Equal(t, badge.Count(), 12)
	assert.Equal(t, badge.Label(), "9+")

	badge.Reconcile(context.Background(), st.Snapshot())
	assert.Equal(t, changes, 1)

	st.MarkAllRead()
	badge.Reconcile(context.Background(), st.Snapshot())
	assert.Equal(t, badge.Label(), "")
	assert.Equal(t, changes, 2)
}

func TestActiveMatch(t *testing.T) {
	a := NewActiveMatch()
	_, ok := a.Get()
	assert.Equal(t, ok, false)

	a.Set(12)
	id, ok := a.Get()
	assert.Equal(t, id, int64(12))
	assert.Equal(t, ok, true)

	a.Reset()
	_, ok = a.Get()
	assert.Equal(t, ok, false)
}
