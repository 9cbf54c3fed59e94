package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeduel/live-delivery/config"
	"github.com/codeduel/live-delivery/infra/credential"
	"github.com/codeduel/live-delivery/internal/domain/event"
	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/domain/store"
)

// ErrUnauthenticated means no valid credential is stored; the channel is not opened.
var ErrUnauthenticated = errors.New("session: not authenticated")

const exportTimeout = 5 * time.Second

// Resetter is session state dropped on logout.
type Resetter interface {
	Reset()
}

// [SESSION] PRIMARY INTERFACE FOR THE OUTER SURFACES (cli, dashboard, status api)
type Sessioner interface {
	Start(ctx context.Context) error
	Stop()
	Logout() error
	Status() model.ConnectionState
	Username() string
	Send(destination string, body any) error
	OnStatus(fn func(model.ConnectionState))
}

// Interface guard
var _ Sessioner = (*Session)(nil)

// Session owns the live channel and the notification store for one authenticated user.
type Session struct {
	cfg       config.TransportConfig
	transport Transport
	creds     credential.Store
	store     *store.Store
	exporter  Exporter
	resetters []Resetter
	now       func() time.Time
	logger    *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	username  string
	sub       Subscription
	listeners []func(model.ConnectionState)
}

type SessionOption func(*Session)

func WithExporter(e Exporter) SessionOption {
	return func(s *Session) { s.exporter = e }
}

// WithResetters registers state cleared by Logout.
func WithResetters(r ...Resetter) SessionOption {
	return func(s *Session) { s.resetters = append(s.resetters, r...) }
}

func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession returns a session that is not yet connected.
func NewSession(cfg config.TransportConfig, transport Transport, creds credential.Store, st *store.Store, opts ...SessionOption) *Session {
	s := &Session{
		cfg:       cfg,
		transport: transport,
		creds:     creds,
		store:     st,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates the stored credential and opens the live channel in the background.
// The caller's ctx only bounds the start itself.
func (s *Session) Start(ctx context.Context) error {
	token, claims, err := credential.Load(s.creds, s.now())
	if err != nil {
		s.logger.Warn("SESSION_NOT_AUTHENTICATED", slog.Any("err", err))
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.username = claims.Username
	s.mu.Unlock()

	s.logger.Info("SESSION_STARTED",
		slog.String("username", claims.Username),
		slog.String("role", claims.Role),
		slog.Time("expires_at", claims.Expiry()),
	)

	s.transport.Connect(token, s.onStatus, s.onMessage)
	return nil
}

// onStatus places the private subscription on every (re)connection. Handles made on a
// previous socket are released first so a frame is never delivered twice.
func (s *Session) onStatus(state model.ConnectionState) {
	if state == model.Connected {
		s.mu.Lock()
		stale := s.sub
		s.sub = nil
		topic := s.cfg.Topic(s.username)
		s.mu.Unlock()

		if stale != nil {
			stale.Unsubscribe()
		}

		sub := s.transport.Subscribe(topic, s.onTopic)
		s.mu.Lock()
		s.sub = sub
		s.mu.Unlock()
	}

	s.mu.Lock()
	listeners := append([]func(model.ConnectionState){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

// onMessage is the connection-wide funnel; it runs before any topic callback.
func (s *Session) onMessage(ev event.Eventer) {
	n, ok := s.store.Ingest(ev)
	if !ok || s.exporter == nil {
		return
	}

	s.mu.Lock()
	base, username := s.ctx, s.username
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}

	ctx, cancel := context.WithTimeout(base, exportTimeout)
	defer cancel()

	if err := s.exporter.Publish(ctx, model.NewOutboundEvent(username, n)); err != nil {
		s.logger.Warn("NOTIFICATION_EXPORT_FAILED", slog.String("id", n.ID), slog.Any("err", err))
	}
}

func (s *Session) onTopic(ev event.Eventer) {
	s.logger.Debug("TOPIC_EVENT", slog.String("kind", string(ev.GetKind())))
}

// Stop tears the channel down and empties the store. Safe to call repeatedly.
func (s *Session) Stop() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	s.transport.Disconnect()
	s.store.Clear()
	if cancel != nil {
		cancel()
	}
}

// Logout stops the session and forgets the credential and every registered session value.
func (s *Session) Logout() error {
	s.Stop()

	s.mu.Lock()
	resetters := append([]Resetter(nil), s.resetters...)
	s.mu.Unlock()
	for _, r := range resetters {
		r.Reset()
	}

	s.mu.Lock()
	username := s.username
	s.username = ""
	s.mu.Unlock()

	if err := s.creds.Clear(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	s.logger.Info("SESSION_LOGGED_OUT", slog.String("username", username))
	return nil
}

func (s *Session) Status() model.ConnectionState {
	return s.transport.Status()
}

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Send publishes body on destination. It is best effort.
func (s *Session) Send(destination string, body any) error {
	return s.transport.Send(destination, body)
}

// AddResetter registers r for Logout after construction.
func (s *Session) AddResetter(r Resetter) {
	s.mu.Lock()
	s.resetters = append(s.resetters, r)
	s.mu.Unlock()
}

// OnStatus registers fn for every connection state change.
func (s *Session) OnStatus(fn func(model.ConnectionState)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Store exposes the session's notification store to consumers.
func (s *Session) Store() *store.Store { return s.store }
