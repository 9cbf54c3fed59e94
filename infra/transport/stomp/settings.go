package stomp

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codeduel/live-delivery/infra/metrics"
)

type Settings struct {
	// fixed delay between reconnect attempts
	ReconnectDelay time.Duration
	// reconnect attempts after a failure before the connection gives up in the error state
	MaxReconnectAttempts int

	HeartbeatIncoming time.Duration
	HeartbeatOutgoing time.Duration

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		ReconnectDelay:       5 * time.Second,
		MaxReconnectAttempts: 5,
		HeartbeatIncoming:    20 * time.Second,
		HeartbeatOutgoing:    20 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         5 * time.Second,
	}
}

// Option defines a functional configuration type for the Connection.
type Option func(*Connection)

func WithLogger(l *slog.Logger) Option {
	return func(c *Connection) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connection) {
		c.metrics = m
	}
}

// WithDialer replaces the default websocket dialer, e.g. to set a proxy or TLS config.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Connection) {
		if d != nil {
			c.dialer = d
		}
	}
}
