package registry

import "log/slog"

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithMailboxSize sets the [BACKPRESSURE] threshold.
// It defines the buffer capacity for each individual consumer's mailbox.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.mailboxSize = size
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
