package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/codeduel/live-delivery/internal/domain/model"
	wsmarshaller "github.com/codeduel/live-delivery/internal/handler/marshaller/ws"
)

// SnapshotSource is the latest store state plus a channel closed on the next change.
type SnapshotSource interface {
	Latest() (model.Snapshot, <-chan struct{})
}

// WSHandler streams every store snapshot to a local websocket client.
type WSHandler struct {
	logger   *slog.Logger
	source   SnapshotSource
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, source SnapshotSource) *WSHandler {
	return &WSHandler{
		logger: logger,
		source: source,
		upgrader: websocket.Upgrader{
			// the status api only listens on loopback
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	// 2. DETECT CLIENT CLOSE: the client never sends, so a failed read ends the stream
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	h.logger.Info("ws opened", "remote", r.RemoteAddr)

	// 3. MAIN WS PUMP LOOP
	var sent uint64
	first := true
	for {
		snap, changed := h.source.Latest()
		if first || snap.Version != sent {
			data, err := wsmarshaller.MarshallSnapshot(snap)
			if err != nil {
				h.logger.Error("failed to marshal ws event", "error", err)
			} else if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("ws send failed", "error", err)
				return
			}
			sent, first = snap.Version, false
		}

		select {
		case <-r.Context().Done():
			return
		case <-gone:
			h.logger.Info("ws closed", "remote", r.RemoteAddr)
			return
		case <-changed:
		}
	}
}
