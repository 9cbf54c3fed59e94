// Package consumer holds the live surfaces that react to notification store snapshots.
// Each one is registered with the registry hub and reconciles on its own goroutine.
package consumer

import (
	"sync"
	"time"

	"github.com/codeduel/live-delivery/internal/domain/model"
)

// Store is the part of the notification store consumers read and mutate through.
type Store interface {
	Snapshot() model.Snapshot
	MarkRead(id string) bool
	Remove(id string) bool
}

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// listeners fans change signals out to the outer surfaces (dashboard, status api).
type listeners struct {
	mu  sync.Mutex
	fns []func()
}

func (l *listeners) add(fn func()) {
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *listeners) fire() {
	l.mu.Lock()
	fns := append([]func(){}, l.fns...)
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
