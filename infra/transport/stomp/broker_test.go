package stomp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
)

// fakeBroker is an in-process STOMP-over-websocket server.
type fakeBroker struct {
	server *httptest.Server

	validToken string

	mu          sync.Mutex
	connects    int
	conns       []*brokerConn
	unsubscribe []string
	disconnects int
}

type brokerConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]string // id -> destination
}

func newFakeBroker(t *testing.T, validToken string) *fakeBroker {
	b := &fakeBroker{validToken: validToken}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.serve(&brokerConn{ws: ws, subs: map[string]string{}})
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBroker) url() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http") + "/ws"
}

func (c *brokerConn) send(f *frame.Frame) {
	data, err := encodeFrame(f)
	if err != nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.WriteMessage(websocket.TextMessage, data)
}

func (b *fakeBroker) serve(c *brokerConn) {
	defer c.ws.Close()

	b.mu.Lock()
	b.connects++
	b.mu.Unlock()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		frames, err := decodeFrames(data)
		if err != nil {
			return
		}

		for _, f := range frames {
			switch f.Command {
			case frame.CONNECT, frame.STOMP:
				if f.Header.Get(authorization) != "Bearer "+b.validToken {
					c.send(frame.New(frame.ERROR, frame.Message, "invalid token"))
					return
				}
				c.send(frame.New(frame.CONNECTED,
					frame.Version, "1.2",
					frame.Server, "fake/1.0",
					frame.HeartBeat, "0,0",
				))
				b.mu.Lock()
				b.conns = append(b.conns, c)
				b.mu.Unlock()

			case frame.SUBSCRIBE:
				c.mu.Lock()
				c.subs[f.Header.Get(frame.Id)] = f.Header.Get(frame.Destination)
				c.mu.Unlock()

			case frame.UNSUBSCRIBE:
				c.mu.Lock()
				delete(c.subs, f.Header.Get(frame.Id))
				c.mu.Unlock()
				b.mu.Lock()
				b.unsubscribe = append(b.unsubscribe, f.Header.Get(frame.Id))
				b.mu.Unlock()

			case frame.DISCONNECT:
				b.mu.Lock()
				b.disconnects++
				b.mu.Unlock()
				return
			}
		}
	}
}

// publish sends body to every live subscription on destination and returns how many received it.
func (b *fakeBroker) publish(destination, body string) int {
	b.mu.Lock()
	conns := append([]*brokerConn(nil), b.conns...)
	b.mu.Unlock()

	n := 0
	for _, c := range conns {
		c.mu.Lock()
		var ids []string
		for id, dest := range c.subs {
			if dest == destination {
				ids = append(ids, id)
			}
		}
		c.mu.Unlock()

		for _, id := range ids {
			f := frame.New(frame.MESSAGE,
				frame.Destination, destination,
				frame.Subscription, id,
				frame.MessageId, "m-"+id,
			)
			f.Body = []byte(body)
			c.send(f)
			n++
		}
	}
	return n
}

func (b *fakeBroker) subscriptions() int {
	b.mu.Lock()
	conns := append([]*brokerConn(nil), b.conns...)
	b.mu.Unlock()

	n := 0
	for _, c := range conns {
		c.mu.Lock()
		n += len(c.subs)
		c.mu.Unlock()
	}
	return n
}

// dropAll severs every live socket without a goodbye.
func (b *fakeBroker) dropAll() {
	b.mu.Lock()
	conns := b.conns
	b.conns = nil
	b.mu.Unlock()

	for _, c := range conns {
		c.ws.Close()
	}
}

func (b *fakeBroker) stats() (connects, disconnects int, unsubscribed []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects, b.disconnects, append([]string(nil), b.unsubscribe...)
}
