package registry

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/codeduel/live-delivery/internal/domain/model"
)

type recorder struct {
	name string

	mu       sync.Mutex
	versions []uint64
	block    chan struct{}
	panicOn  uint64
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Reconcile(_ context.Context, snap model.Snapshot) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.versions = append(r.versions, snap.Version)
	r.mu.Unlock()
	if r.panicOn != 0 && snap.Version == r.panicOn {
		panic("boom")
	}
}

func (r *recorder) seen() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.versions...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHubDeliversInOrder(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	r := &recorder{name: "toast"}
	assert.Equal(t, h.Register(r), nil)

	for v := uint64(1); v <= 5; v++ {
		h.Notify(model.Snapshot{Version: v})
	}

	waitFor(t, func() bool { return len(r.seen()) == 5 })
	assert.Equal(t, r.seen(), []uint64{1, 2, 3, 4, 5})
}

func TestHubReplaysLastOnRegister(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	h.Notify(model.Snapshot{Version: 7})

	r := &recorder{name: "badge"}
	assert.Equal(t, h.Register(r), nil)

	waitFor(t, func() bool { return len(r.seen()) == 1 })
	assert.Equal(t, r.seen()[0], uint64(7))
}

func TestHubSkipsStaleSnapshots(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	r := &recorder{name: "match"}
	assert.Equal(t, h.Register(r), nil)

	h.Notify(model.Snapshot{Version: 3})
	h.Notify(model.Snapshot{Version: 2})
	h.Notify(model.Snapshot{Version: 4})

	waitFor(t, func() bool { return len(r.seen()) == 2 })
	assert.Equal(t, r.seen(), []uint64{3, 4})
}

func TestHubRejectsDuplicateName(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	assert.Equal(t, h.Register(&recorder{name: "toast"}), nil)
	assert.Equal(t, h.Register(&recorder{name: "toast"}), ErrAlreadyRegistered)
	assert.Equal(t, h.Consumers(), []string{"toast"})
}

func TestHubSlowConsumerDoesNotBlock(t *testing.T) {
	h := NewHub(WithMailboxSize(4))
	defer h.Shutdown()

	slow := &recorder{name: "slow", block: make(chan struct{})}
	fast := &recorder{name: "fast"}
	assert.Equal(t, h.Register(slow), nil)
	assert.Equal(t, h.Register(fast), nil)

	done := make(chan struct{})
	go func() {
		for v := uint64(1); v <= 10; v++ {
			h.Notify(model.Snapshot{Version: v})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a slow consumer")
	}

	waitFor(t, func() bool { return len(fast.seen()) > 0 })
	close(slow.block)

	// the burst is coalesced and the newest snapshot is never the one shed
	waitFor(t, func() bool {
		seen := slow.seen()
		return len(seen) > 0 && seen[len(seen)-1] == 10
	})
	assert.Equal(t, len(slow.seen()) < 10, true)
	waitFor(t, func() bool { return len(fast.seen()) > 0 && fast.seen()[len(fast.seen())-1] == 10 })
}

func TestCellKeepsNewestWhenFull(t *testing.T) {
	r := &recorder{name: "matchmaking", block: make(chan struct{})}
	c := NewCell(r, 2, slog.Default())
	defer c.Stop()

	assert.Equal(t, c.Push(model.Snapshot{Version: 1}), true)
	for v := uint64(2); v <= 6; v++ {
		assert.Equal(t, c.Push(model.Snapshot{Version: v}), true)
	}
	// older than what is already queued
	assert.Equal(t, c.Push(model.Snapshot{Version: 4}), false)

	close(r.block)
	waitFor(t, func() bool { return c.LastVersion() == 6 })
	assert.Equal(t, c.Dropped() > 0, true)
}

func TestHubSurvivesPanic(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	r := &recorder{name: "flaky", panicOn: 1}
	assert.Equal(t, h.Register(r), nil)

	h.Notify(model.Snapshot{Version: 1})
	h.Notify(model.Snapshot{Version: 2})

	waitFor(t, func() bool { return len(r.seen()) == 2 })
}

func TestHubUnregister(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	r := &recorder{name: "toast"}
	assert.Equal(t, h.Register(r), nil)
	h.Unregister("toast")
	h.Unregister("toast")

	h.Notify(model.Snapshot{Version: 1})
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, len(r.seen()), 0)
	assert.Equal(t, len(h.Consumers()), 0)
}
