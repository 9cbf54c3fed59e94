package service

import (
	"context"
	"sync"

	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/domain/store"
)

// Interface guard
var _ store.Listener = (*Watcher)(nil)

// Watcher keeps the latest store snapshot for request scoped readers (long-poll,
// websocket stream). Notify runs under the store lock and never blocks.
type Watcher struct {
	mu      sync.Mutex
	latest  model.Snapshot
	changed chan struct{}
}

func NewWatcher() *Watcher {
	return &Watcher{changed: make(chan struct{})}
}

func (w *Watcher) Notify(snap model.Snapshot) {
	w.mu.Lock()
	w.latest = snap
	close(w.changed)
	w.changed = make(chan struct{})
	w.mu.Unlock()
}

// Latest returns the last published snapshot and a channel closed on the next one.
func (w *Watcher) Latest() (model.Snapshot, <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest, w.changed
}

// Next blocks until a snapshot newer than version is published or ctx ends.
func (w *Watcher) Next(ctx context.Context, version uint64) (model.Snapshot, error) {
	for {
		snap, changed := w.Latest()
		if snap.Version > version {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-changed:
		}
	}
}
