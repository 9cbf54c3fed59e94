package stomp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codeduel/live-delivery/infra/metrics"
	"github.com/codeduel/live-delivery/internal/domain/event"
	"github.com/codeduel/live-delivery/internal/domain/model"
)

type dispatchFunc func(sub *Subscription, ev event.Eventer)

// session is one established socket. Subscriptions live and die with it.
type session struct {
	ws       *websocket.Conn
	settings Settings
	info     model.ConnectedPayload
	logger   *slog.Logger
	metrics  *metrics.Metrics
	dispatch dispatchFunc

	writeMu sync.Mutex

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(ws *websocket.Conn, s Settings, logger *slog.Logger, m *metrics.Metrics, d dispatchFunc) *session {
	return &session{
		ws:       ws,
		settings: s,
		logger:   logger,
		metrics:  m,
		dispatch: d,
		subs:     make(map[string]*Subscription),
		done:     make(chan struct{}),
	}
}

// handshake sends CONNECT and waits for CONNECTED. An ERROR reply is a rejected credential.
func (s *session) handshake(connect *frame.Frame) (*frame.Frame, error) {
	if err := s.write(connect); err != nil {
		return nil, err
	}

	if s.settings.HandshakeTimeout > 0 {
		s.ws.SetReadDeadline(time.Now().Add(s.settings.HandshakeTimeout))
	}
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read CONNECTED: %w", err)
		}
		frames, err := decodeFrames(data)
		if err != nil {
			return nil, err
		}
		for _, f := range frames {
			switch f.Command {
			case frame.CONNECTED:
				s.ws.SetReadDeadline(time.Time{})
				return f, nil
			case frame.ERROR:
				return nil, fmt.Errorf("%w: %s", ErrUnauthorized, f.Header.Get(frame.Message))
			default:
				return nil, fmt.Errorf("unexpected %s frame during handshake", f.Command)
			}
		}
	}
}

// serve runs the reader and the heart-beat writer until the socket fails or ctx ends.
// ready is called once both goroutines are running.
func (s *session) serve(ctx context.Context, ready func()) error {
	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- s.readLoop()
	}()
	go func() {
		defer wg.Done()
		errCh <- s.pingLoop()
	}()

	ready()

	var err error
	select {
	case <-ctx.Done():
		s.goodbye()
		err = ctx.Err()
	case err = <-errCh:
	}

	s.close()
	wg.Wait()
	return err
}

func (s *session) readLoop() error {
	incoming := s.info.HeartbeatIncoming
	for {
		if incoming > 0 {
			// tolerate one missed beat
			s.ws.SetReadDeadline(time.Now().Add(2 * incoming))
		}

		_, data, err := s.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}

		frames, err := decodeFrames(data)
		if err != nil {
			s.metrics.ObserveDecodeFailure()
			s.logger.Warn("DECODE_FAILED", slog.String("stage", "frame"), slog.Any("err", err))
			continue
		}

		for _, f := range frames {
			switch f.Command {
			case frame.MESSAGE:
				s.deliver(f)
			case frame.ERROR:
				return fmt.Errorf("%w: broker error: %s", ErrConnectionLost, f.Header.Get(frame.Message))
			case frame.RECEIPT:
			default:
				s.logger.Debug("[STOMP] ignored frame", slog.String("command", f.Command))
			}
		}
	}
}

func (s *session) deliver(f *frame.Frame) {
	id := f.Header.Get(frame.Subscription)

	s.mu.Lock()
	sub := s.subs[id]
	s.mu.Unlock()

	if sub == nil {
		s.logger.Debug("[STOMP] message for unknown subscription", slog.String("subscription", id))
		return
	}

	ev, err := event.Decode(f.Body)
	if err != nil {
		s.metrics.ObserveDecodeFailure()
		s.logger.Warn("DECODE_FAILED",
			slog.String("stage", "payload"),
			slog.String("destination", f.Header.Get(frame.Destination)),
			slog.Any("err", err),
		)
		return
	}

	s.dispatch(sub, ev)
}

func (s *session) pingLoop() error {
	outgoing := s.info.HeartbeatOutgoing
	if outgoing <= 0 {
		<-s.done
		return nil
	}

	t := time.NewTicker(outgoing)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return nil
		case <-t.C:
			if err := s.writeRaw(heartbeatPayload); err != nil {
				return fmt.Errorf("%w: heart-beat: %w", ErrConnectionLost, err)
			}
		}
	}
}

func (s *session) subscribe(destination string, callback MessageFunc) (*Subscription, error) {
	sub := &Subscription{
		id:          uuid.NewString(),
		destination: destination,
		callback:    callback,
		sess:        s,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	if err := s.write(subscribeFrame(sub.id, destination)); err != nil {
		s.forget(sub.id)
		return nil, err
	}
	return sub, nil
}

// forget removes id and reports whether the socket is still open.
func (s *session) forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	return !s.closed
}

func (s *session) dropSubscriptions() {
	s.mu.Lock()
	s.subs = make(map[string]*Subscription)
	s.mu.Unlock()
}

// goodbye releases every subscription and announces the disconnect, best effort.
func (s *session) goodbye() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.write(unsubscribeFrame(id)); err != nil {
			return
		}
	}
	s.write(frame.New(frame.DISCONNECT))
}

func (s *session) write(f *frame.Frame) error {
	data, err := encodeFrame(f)
	if err != nil {
		return err
	}
	return s.writeRaw(data)
}

func (s *session) writeRaw(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.settings.WriteTimeout > 0 {
		s.ws.SetWriteDeadline(time.Now().Add(s.settings.WriteTimeout))
	}
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.done)
		s.ws.Close()
	})
}
