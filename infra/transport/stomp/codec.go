package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

const (
	acceptVersions = "1.2,1.1,1.0"
	authorization  = "Authorization"
)

// heartbeatPayload is the EOL the broker and client exchange as keep-alive.
var heartbeatPayload = []byte("\n")

// encodeFrame renders f in the STOMP wire format, one frame per websocket message.
func encodeFrame(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Command, err)
	}
	return buf.Bytes(), nil
}

// decodeFrames parses every frame in a websocket message. Heart-beat EOLs are skipped.
func decodeFrames(data []byte) ([]*frame.Frame, error) {
	r := frame.NewReader(bytes.NewReader(data))

	var frames []*frame.Frame
	for {
		f, err := r.Read()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("decode frame: %w", err)
		}
		if f == nil {
			continue
		}
		frames = append(frames, f)
	}
}

func connectFrame(host, token string, s Settings) *frame.Frame {
	f := frame.New(frame.CONNECT,
		frame.AcceptVersion, acceptVersions,
		frame.Host, host,
		frame.HeartBeat, formatHeartBeat(s.HeartbeatOutgoing, s.HeartbeatIncoming),
	)
	if token != "" {
		f.Header.Add(authorization, "Bearer "+token)
	}
	return f
}

func subscribeFrame(id, destination string) *frame.Frame {
	return frame.New(frame.SUBSCRIBE,
		frame.Id, id,
		frame.Destination, destination,
		frame.Ack, "auto",
	)
}

func unsubscribeFrame(id string) *frame.Frame {
	return frame.New(frame.UNSUBSCRIBE, frame.Id, id)
}

func sendFrame(destination string, body []byte) *frame.Frame {
	f := frame.New(frame.SEND,
		frame.Destination, destination,
		frame.ContentType, "application/json",
	)
	f.Body = body
	return f
}

func formatHeartBeat(outgoing, incoming time.Duration) string {
	return fmt.Sprintf("%d,%d", outgoing.Milliseconds(), incoming.Milliseconds())
}

// negotiateHeartBeat applies the STOMP rule: each direction uses the larger of what one
// side can send and the other wants, and is disabled when either side says 0.
func negotiateHeartBeat(s Settings, header string) (incoming, outgoing time.Duration) {
	if strings.TrimSpace(header) == "" {
		return 0, 0
	}
	serverSend, serverWant, err := frame.ParseHeartBeat(header)
	if err != nil {
		return 0, 0
	}

	if s.HeartbeatOutgoing > 0 && serverWant > 0 {
		outgoing = max(s.HeartbeatOutgoing, serverWant)
	}
	if s.HeartbeatIncoming > 0 && serverSend > 0 {
		incoming = max(s.HeartbeatIncoming, serverSend)
	}
	return incoming, outgoing
}
