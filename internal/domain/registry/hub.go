package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/codeduel/live-delivery/internal/domain/model"
)

var ErrAlreadyRegistered = errors.New("registry: consumer already registered")

// Hubber defines the gateway between the notification store and its consumers.
type Hubber interface {
	Notify(snap model.Snapshot)
	Register(c Consumer) error
	Unregister(name string)
	Consumers() []string
	Shutdown()
}

// Interface guard
var _ Hubber = (*Hub)(nil)

// Hub implements a [CONSUMER_REGISTRY] using the Cell pattern.
type Hub struct {
	// cells stores Map[string]Celler keyed by consumer name.
	cells sync.Map

	// last is replayed to consumers that register after the first mutation.
	last atomic.Pointer[model.Snapshot]

	config hubConfig
	logger *slog.Logger
}

type hubConfig struct {
	mailboxSize int
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		config: hubConfig{mailboxSize: 64},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Notify routes snap to every registered cell. It never blocks, so the store may call
// it while holding its own lock.
func (h *Hub) Notify(snap model.Snapshot) {
	h.last.Store(&snap)

	h.cells.Range(func(_, val any) bool {
		if cell, ok := val.(Celler); ok {
			cell.Push(snap)
		}
		return true
	})
}

// Register starts a cell for c and hands it the latest known snapshot.
func (h *Hub) Register(c Consumer) error {
	cell := NewCell(c, h.config.mailboxSize, h.logger)
	if _, loaded := h.cells.LoadOrStore(c.Name(), cell); loaded {
		cell.Stop()
		return ErrAlreadyRegistered
	}

	if last := h.last.Load(); last != nil {
		cell.Push(*last)
	}

	h.logger.Debug("CONSUMER_REGISTERED", slog.String("consumer", c.Name()))
	return nil
}

func (h *Hub) Unregister(name string) {
	if val, ok := h.cells.LoadAndDelete(name); ok {
		if cell, ok := val.(Celler); ok {
			cell.Stop()
		}
	}
}

// Consumers lists registered consumer names in lexical order.
func (h *Hub) Consumers() []string {
	var names []string
	h.cells.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Shutdown stops every cell. The hub stays usable for new registrations.
func (h *Hub) Shutdown() {
	h.cells.Range(func(key, val any) bool {
		h.cells.Delete(key)
		if cell, ok := val.(Celler); ok {
			cell.Stop()
		}
		return true
	})
}
