package lp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/codeduel/live-delivery/internal/domain/model"
	lpmarshaller "github.com/codeduel/live-delivery/internal/handler/marshaller/lp"
)

const DefaultPollTimeout = 30 * time.Second

// SnapshotWaiter blocks until the store publishes a version newer than the given one.
type SnapshotWaiter interface {
	Next(ctx context.Context, version uint64) (model.Snapshot, error)
}

type LPHandler struct {
	waiter  SnapshotWaiter
	timeout time.Duration
}

func NewLPHandler(waiter SnapshotWaiter, timeout time.Duration) *LPHandler {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &LPHandler{
		waiter:  waiter,
		timeout: timeout,
	}
}

// Poll handles the long-polling request.
// It holds the connection until the store moves past ?since= or the timeout occurs.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	// 1. Version the client already holds.
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// 2. Wait for data or timeout.
	snap, err := h.waiter.Next(ctx, since)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		// Standard Long-Polling timeout to prevent hanging connections.
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		// Client disconnected.
		return
	}

	// 3. Final transmission.
	data, err := lpmarshaller.MarshallEvents(snap)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
