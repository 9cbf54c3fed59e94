package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/domain/registry"
)

const (
	DefaultVisibleToasts = 3
	DefaultDismissAfter  = 5 * time.Second

	systemSender = "System"
)

// Toast is a displayed notification.
type Toast struct {
	ID       string         `json:"id"`
	Category model.Category `json:"type"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Sender   string         `json:"sender"`
}

// NewToast renders n for display. Warnings are shown as info.
func NewToast(n model.Notification) Toast {
	category := n.Category
	if category == model.CategoryWarning {
		category = model.CategoryInfo
	}
	sender := n.Sender()
	if sender == "" {
		sender = systemSender
	}
	return Toast{ID: n.ID, Category: category, Title: n.Title, Message: n.Message, Sender: sender}
}

// Interface guard
var _ registry.Consumer = (*ToastFeed)(nil)

// ToastFeed shows the newest notifications, marks each read on display and removes it
// from the store when it is dismissed, by hand or by timer.
type ToastFeed struct {
	store        Store
	visible      int
	dismissAfter time.Duration
	afterFunc    AfterFunc
	logger       *slog.Logger
	changes      listeners

	mu        sync.Mutex
	shown     []Toast
	timers    map[string]Timer
	processed map[string]struct{}
	closed    bool
}

type ToastOption func(*ToastFeed)

func WithVisible(n int) ToastOption {
	return func(f *ToastFeed) {
		if n > 0 {
			f.visible = n
		}
	}
}

func WithDismissAfter(d time.Duration) ToastOption {
	return func(f *ToastFeed) {
		if d > 0 {
			f.dismissAfter = d
		}
	}
}

func WithToastTimers(after AfterFunc) ToastOption {
	return func(f *ToastFeed) { f.afterFunc = after }
}

func WithToastLogger(l *slog.Logger) ToastOption {
	return func(f *ToastFeed) { f.logger = l }
}

func NewToastFeed(st Store, opts ...ToastOption) *ToastFeed {
	f := &ToastFeed{
		store:        st,
		visible:      DefaultVisibleToasts,
		dismissAfter: DefaultDismissAfter,
		afterFunc:    realAfterFunc,
		logger:       slog.Default(),
		timers:       make(map[string]Timer),
		processed:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *ToastFeed) Name() string { return "toast" }

// Reconcile displays every not yet processed notification among the newest visible ones.
func (f *ToastFeed) Reconcile(_ context.Context, snap model.Snapshot) {
	items := snap.Notifications
	if len(items) > f.visible {
		items = items[:f.visible]
	}

	var fresh []model.Notification
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	for _, n := range items {
		if _, ok := f.processed[n.ID]; ok {
			continue
		}
		f.processed[n.ID] = struct{}{}
		f.shown = append(f.shown, NewToast(n))
		id := n.ID
		f.timers[id] = f.afterFunc(f.dismissAfter, func() { f.Dismiss(id) })
		fresh = append(fresh, n)
	}
	f.pruneLocked(snap)
	f.mu.Unlock()

	if len(fresh) == 0 {
		return
	}
	for _, n := range fresh {
		if !n.Read {
			f.store.MarkRead(n.ID)
		}
		f.logger.Debug("TOAST_SHOWN", slog.String("id", n.ID), slog.String("title", n.Title))
	}
	f.changes.fire()
}

// pruneLocked forgets processed ids that left the store without being displayed.
func (f *ToastFeed) pruneLocked(snap model.Snapshot) {
	present := make(map[string]struct{}, len(snap.Notifications))
	for _, n := range snap.Notifications {
		present[n.ID] = struct{}{}
	}
	for id := range f.processed {
		if _, ok := present[id]; ok {
			continue
		}
		if _, ok := f.timers[id]; ok {
			continue
		}
		delete(f.processed, id)
	}
}

// Dismiss hides the toast and removes its notification from the store.
func (f *ToastFeed) Dismiss(id string) {
	f.mu.Lock()
	idx := -1
	for i, t := range f.shown {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		f.mu.Unlock()
		return
	}
	f.shown = append(f.shown[:idx], f.shown[idx+1:]...)
	if t, ok := f.timers[id]; ok {
		t.Stop()
		delete(f.timers, id)
	}
	delete(f.processed, id)
	f.mu.Unlock()

	f.store.Remove(id)
	f.changes.fire()
}

// Toasts returns the displayed toasts, oldest first.
func (f *ToastFeed) Toasts() []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Toast(nil), f.shown...)
}

// Close cancels every pending dismissal and stops displaying.
func (f *ToastFeed) Close() {
	f.mu.Lock()
	for id, t := range f.timers {
		t.Stop()
		delete(f.timers, id)
	}
	f.shown = nil
	f.closed = true
	f.mu.Unlock()
}

// OnChange registers fn for every change of the displayed set.
func (f *ToastFeed) OnChange(fn func()) { f.changes.add(fn) }
