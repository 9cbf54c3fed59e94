package service

import (
	"context"

	"github.com/codeduel/live-delivery/infra/transport/stomp"
	"github.com/codeduel/live-delivery/internal/domain/event"
	"github.com/codeduel/live-delivery/internal/domain/model"
)

// Subscription is the handle of one topic registration.
type Subscription interface {
	Unsubscribe()
}

// Transport is the live channel the session drives.
type Transport interface {
	Connect(token string, onStatus func(model.ConnectionState), onMessage func(event.Eventer))
	Subscribe(destination string, callback func(event.Eventer)) Subscription
	Send(destination string, body any) error
	Disconnect()
	Status() model.ConnectionState
}

// Exporter receives every accepted notification for companion processes.
type Exporter interface {
	Publish(ctx context.Context, ev *model.OutboundEvent) error
}

// Interface guard
var _ Transport = (*stompTransport)(nil)

type stompTransport struct {
	conn *stomp.Connection
}

// NewStompTransport adapts a broker connection to Transport.
func NewStompTransport(conn *stomp.Connection) Transport {
	return &stompTransport{conn: conn}
}

func (t *stompTransport) Connect(token string, onStatus func(model.ConnectionState), onMessage func(event.Eventer)) {
	t.conn.Connect(token, onStatus, onMessage)
}

func (t *stompTransport) Subscribe(destination string, callback func(event.Eventer)) Subscription {
	sub := t.conn.Subscribe(destination, callback)
	if sub == nil {
		// a typed nil would defeat the caller's nil check
		return nil
	}
	return sub
}

func (t *stompTransport) Send(destination string, body any) error {
	return t.conn.Send(destination, body)
}

func (t *stompTransport) Disconnect() { t.conn.Disconnect() }

func (t *stompTransport) Status() model.ConnectionState { return t.conn.Status() }
