/*
Package registry fans store snapshots out to the live consumers (toast feed, badge,
matchmaking flow, match page) using the Actor Model.

Key Architectural Concepts:
  - Cells: every registered consumer is wrapped in an isolated 'Cell' (Actor) with its
    own mailbox and goroutine, so one slow or panicking consumer never stalls the store
    or its siblings.
  - Ordering: a cell applies snapshots strictly in version order and skips any snapshot
    older than the last one it handled.
  - Same-state semantics: every consumer reconciles against the same immutable snapshot,
    so a mutation triggered by one consumer (e.g. the toast feed marking an entry read)
    is observed by the others only in the next snapshot.
*/
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/codeduel/live-delivery/internal/domain/model"
)

// Consumer reacts to the subset of notifications it cares about.
// Reconcile is always invoked from the consumer's own goroutine.
type Consumer interface {
	Name() string
	Reconcile(ctx context.Context, snap model.Snapshot)
}

// Celler defines the internal API for consumer-specific delivery units.
type Celler interface {
	Push(snap model.Snapshot) bool
	Dropped() uint64
	LastVersion() uint64
	Stop()
}

// Cell implements [ISOLATED_DELIVERY] logic for a single consumer.
type Cell struct {
	// [IDENTITY]
	consumer Consumer

	// [MAILBOX]
	// Buffered channel that decouples the store from the consumer.
	mailbox chan model.Snapshot

	// [LIFECYCLE_CONTROL]
	ctx      context.Context
	cancel   context.CancelFunc
	doneCh   chan struct{}
	stopOnce sync.Once

	logger *slog.Logger

	// pushMu serializes producers; lastQueued is the newest version accepted by Push
	pushMu     sync.Mutex
	lastQueued uint64

	lastVersion  atomic.Uint64 // [ATOMIC_FIELD]
	droppedCount atomic.Uint64 // [ATOMIC_FIELD]
}

func NewCell(consumer Consumer, bufferSize int, logger *slog.Logger) *Cell {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Cell{
		consumer: consumer,
		mailbox:  make(chan model.Snapshot, bufferSize), // [DYNAMIC_BUFFER]
		ctx:      ctx,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
		logger:   logger.With(slog.String("consumer", consumer.Name())),
	}
	go c.loop()
	return c
}

// Push enqueues snap without blocking. A full mailbox sheds its oldest pending
// snapshot so the newest one is always queued.
func (c *Cell) Push(snap model.Snapshot) bool {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	// a late replay must not evict anything newer
	if snap.Version != 0 && snap.Version <= c.lastQueued {
		return false
	}
	c.lastQueued = snap.Version

	for {
		select {
		case <-c.ctx.Done():
			return false
		default:
		}

		select {
		case c.mailbox <- snap:
			return true
		default:
		}

		// [COALESCE] every snapshot carries the whole state
		select {
		case old := <-c.mailbox:
			c.droppedCount.Add(1)
			c.logger.Debug("CONSUMER_SNAPSHOT_COALESCED",
				slog.Uint64("dropped", old.Version),
				slog.Uint64("version", snap.Version),
			)
		default:
		}
	}
}

func (c *Cell) Dropped() uint64 { return c.droppedCount.Load() }

func (c *Cell) LastVersion() uint64 { return c.lastVersion.Load() }

func (c *Cell) loop() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.ctx.Done():
			return
		case snap := <-c.mailbox:
			c.deliver(snap)
		}
	}
}

func (c *Cell) deliver(snap model.Snapshot) {
	// [ORDERING] version 0 is the empty initial state, everything else must move forward
	if last := c.lastVersion.Load(); snap.Version != 0 && snap.Version <= last {
		return
	}
	c.lastVersion.Store(snap.Version)

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("CONSUMER_PANIC",
				slog.Uint64("version", snap.Version),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	c.consumer.Reconcile(c.ctx, snap)
}

// Stop terminates the loop and waits for an in-flight Reconcile to return.
func (c *Cell) Stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		<-c.doneCh
	})
}
