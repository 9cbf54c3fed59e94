package stomp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"

	"github.com/codeduel/live-delivery/infra/metrics"
	"github.com/codeduel/live-delivery/internal/domain/event"
	"github.com/codeduel/live-delivery/internal/domain/model"
)

var (
	// ErrUnauthorized means the broker refused the credential. It is never retried.
	ErrUnauthorized   = errors.New("stomp: credential rejected")
	ErrNotConnected   = errors.New("stomp: not connected")
	ErrConnectionLost = errors.New("stomp: connection lost")
)

type (
	StatusFunc  func(model.ConnectionState)
	MessageFunc func(event.Eventer)
)

// Connection is the single live link to the broker. It owns reconnection, heart-beats
// and the set of active subscriptions, which never outlive the socket they were made on.
type Connection struct {
	url      string
	settings Settings
	dialer   *websocket.Dialer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	state     model.ConnectionState
	run       *runner
	sess      *session
	info      model.ConnectedPayload
	onStatus  StatusFunc
	onMessage MessageFunc

	// callbacks counts onStatus/onMessage invocations in flight
	callbacks atomic.Int32
}

type runner struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *runner) active() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

func NewConnection(rawURL string, settings Settings, opts ...Option) *Connection {
	c := &Connection{
		url:      rawURL,
		settings: settings,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: settings.HandshakeTimeout,
		},
		logger: slog.Default(),
		state:  model.Disconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts the connection in the background. Calling it while a connection is
// established or being established is a no-op. onStatus observes every state change,
// onMessage receives every decoded payload regardless of topic, before the topic callback.
func (c *Connection) Connect(token string, onStatus StatusFunc, onMessage MessageFunc) {
	c.mu.Lock()
	if c.run != nil && c.run.active() {
		c.mu.Unlock()
		c.logger.Debug("[STOMP] already connected")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &runner{cancel: cancel, done: make(chan struct{})}
	c.run = r
	c.onStatus = onStatus
	c.onMessage = onMessage
	c.mu.Unlock()

	c.setState(model.Connecting)

	go func() {
		defer close(r.done)
		c.loop(ctx, token)
	}()
}

// loop drives dial, serve and the fixed-delay reconnect policy until ctx ends, the
// credential is rejected, or the attempts are exhausted.
func (c *Connection) loop(ctx context.Context, token string) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.settings.ReconnectDelay), uint64(max(c.settings.MaxReconnectAttempts, 0))),
		ctx,
	)
	policy.Reset()

	for {
		connected, err := c.attempt(ctx, token)
		if ctx.Err() != nil {
			return
		}
		if connected {
			// attempts count from the last successful connection
			policy.Reset()
		}

		c.logger.Warn("[STOMP] connection failed", slog.String("url", c.url), slog.Any("err", err))
		c.setState(model.Error)

		var permanent *backoff.PermanentError
		if errors.Is(err, ErrUnauthorized) || errors.As(err, &permanent) {
			return
		}

		next := policy.NextBackOff()
		if next == backoff.Stop {
			c.logger.Error("[STOMP] reconnect attempts exhausted",
				slog.Int("max_attempts", c.settings.MaxReconnectAttempts))
			return
		}

		c.metrics.ObserveReconnect()
		c.setState(model.Reconnecting)

		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// attempt runs one dial + handshake + serve cycle. connected reports whether the
// handshake succeeded before the returned error ended the cycle.
func (c *Connection) attempt(ctx context.Context, token string) (connected bool, err error) {
	sess, err := c.dial(ctx, token)
	if err != nil {
		return false, err
	}
	if ctx.Err() != nil {
		// disconnected while dialing
		sess.close()
		return false, ctx.Err()
	}

	c.mu.Lock()
	c.sess = sess
	c.info = sess.info
	c.mu.Unlock()

	c.logger.Info("[STOMP] connected",
		slog.String("server", sess.info.Server),
		slog.String("version", sess.info.Version),
		slog.Duration("heartbeat_in", sess.info.HeartbeatIncoming),
		slog.Duration("heartbeat_out", sess.info.HeartbeatOutgoing),
	)

	err = sess.serve(ctx, func() {
		// reader and pinger are running, subscriptions can be placed
		if ctx.Err() == nil {
			c.setState(model.Connected)
		}
	})

	c.mu.Lock()
	if c.sess == sess {
		c.sess = nil
	}
	c.mu.Unlock()
	sess.dropSubscriptions()

	return true, err
}

func (c *Connection) dial(ctx context.Context, token string) (*session, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parse url: %w", err))
	}

	ws, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: upgrade status %d", ErrUnauthorized, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}

	sess := newSession(ws, c.settings, c.logger, c.metrics, c.dispatch)

	// unblock the handshake read when the connection is cancelled
	stop := context.AfterFunc(ctx, sess.close)
	defer stop()

	f, err := sess.handshake(connectFrame(u.Host, token, c.settings))
	if err != nil {
		sess.close()
		return nil, err
	}

	in, out := negotiateHeartBeat(c.settings, f.Header.Get(frame.HeartBeat))
	sess.info = model.ConnectedPayload{
		Server:            f.Header.Get(frame.Server),
		Version:           f.Header.Get(frame.Version),
		Session:           f.Header.Get(frame.Session),
		HeartbeatIncoming: in,
		HeartbeatOutgoing: out,
	}
	return sess, nil
}

// dispatch runs on the reader goroutine: funnel first, topic callback second.
func (c *Connection) dispatch(sub *Subscription, ev event.Eventer) {
	c.mu.Lock()
	onMessage := c.onMessage
	c.mu.Unlock()

	c.callbacks.Add(1)
	defer c.callbacks.Add(-1)

	if onMessage != nil {
		onMessage(ev)
	}
	if sub.callback != nil {
		sub.callback(ev)
	}
}

// Subscribe registers callback for destination on the current socket. It returns nil
// when not connected.
func (c *Connection) Subscribe(destination string, callback MessageFunc) *Subscription {
	c.mu.Lock()
	sess := c.sess
	connected := c.state == model.Connected
	c.mu.Unlock()

	if sess == nil || !connected {
		c.logger.Warn("[STOMP] cannot subscribe: not connected", slog.String("destination", destination))
		return nil
	}

	sub, err := sess.subscribe(destination, callback)
	if err != nil {
		c.logger.Warn("[STOMP] subscribe failed", slog.String("destination", destination), slog.Any("err", err))
		return nil
	}

	c.logger.Info("[STOMP] subscribed", slog.String("destination", destination), slog.String("id", sub.id))
	return sub
}

// Send publishes body as JSON. When not connected it logs and drops the payload.
func (c *Connection) Send(destination string, body any) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil {
		c.logger.Warn("[STOMP] cannot send: not connected", slog.String("destination", destination))
		return ErrNotConnected
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	return sess.write(sendFrame(destination, data))
}

// Disconnect unsubscribes everything, closes the socket and reports disconnected.
// It is safe to call repeatedly and when never connected. Called from an onStatus or
// onMessage callback it runs on the connection's own goroutines, so it only cancels
// them and returns without waiting for the socket to close.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	r := c.run
	c.run = nil
	c.mu.Unlock()

	if r != nil {
		r.cancel()
		if c.callbacks.Load() == 0 {
			<-r.done
		}
	}

	if c.Status() != model.Disconnected {
		c.logger.Info("[STOMP] disconnected", slog.String("url", c.url))
		c.setState(model.Disconnected)
	}
}

func (c *Connection) Status() model.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) IsConnected() bool {
	return c.Status() == model.Connected
}

// Info describes the broker session negotiated by the last successful handshake.
func (c *Connection) Info() model.ConnectedPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

func (c *Connection) setState(s model.ConnectionState) {
	c.mu.Lock()
	c.state = s
	cb := c.onStatus
	c.mu.Unlock()

	c.metrics.ObserveTransition(s.String())
	if cb != nil {
		c.callbacks.Add(1)
		defer c.callbacks.Add(-1)
		cb(s)
	}
}
