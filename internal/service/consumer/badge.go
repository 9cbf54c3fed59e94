package consumer

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/domain/registry"
)

// Interface guard
var _ registry.Consumer = (*Badge)(nil)

// Badge is the unread counter. It keeps no state of its own: the count is always
// read from the store.
type Badge struct {
	store   Store
	changes listeners
	last    atomic.Int64
}

func NewBadge(st Store) *Badge {
	b := &Badge{store: st}
	b.last.Store(-1)
	return b
}

func (b *Badge) Name() string { return "badge" }

// Reconcile signals listeners when the unread count moved.
func (b *Badge) Reconcile(_ context.Context, snap model.Snapshot) {
	if n := int64(snap.Unread()); b.last.Swap(n) != n {
		b.changes.fire()
	}
}

func (b *Badge) Count() int { return b.store.Snapshot().Unread() }

// Label renders the count the way the bell does: empty for zero, capped at 9+.
func (b *Badge) Label() string {
	return BadgeLabel(b.Count())
}

func BadgeLabel(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > 9:
		return "9+"
	default:
		return strconv.Itoa(n)
	}
}

func (b *Badge) OnChange(fn func()) { b.changes.add(fn) }
