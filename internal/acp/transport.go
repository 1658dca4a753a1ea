// Package acp implements the client side of the Agent Client Protocol
// dialect spoken by iFlow agents: JSON-RPC 2.0 over a WebSocket, one JSON
// object per line of each text frame.
package acp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// ReceiveTimeout is how long Receive waits for a frame before yielding an
// idle frame. Idle frames keep the adapter loop responsive without tearing
// down the connection.
const ReceiveTimeout = 30 * time.Second

// FrameKind discriminates the results of Transport.Receive.
type FrameKind int

const (
	// FrameText carries the text payload of a data frame.
	FrameText FrameKind = iota
	// FrameIdle indicates the receive timeout elapsed with no data.
	FrameIdle
	// FrameClosed indicates the peer closed the connection.
	FrameClosed
)

// Frame is a single inbound transport event.
type Frame struct {
	Kind FrameKind
	Text string
}

// Transport is the framing layer over one agent connection.
type Transport interface {
	// Send writes one text frame.
	Send(text string) error
	// Receive returns the next frame, an idle frame after ReceiveTimeout,
	// or a closed frame when the peer hangs up.
	Receive() (Frame, error)
	// Close tears down the connection.
	Close() error
}

type readResult struct {
	messageType int
	data        []byte
	err         error
}

// wsTransport is a Transport over a gorilla WebSocket connection. A reader
// goroutine feeds frames into a channel so the receive timeout does not
// poison the connection's read state.
type wsTransport struct {
	conn    *websocket.Conn
	frames  chan readResult
	done    chan struct{}
	timeout time.Duration
}

// DialWebSocket connects to the agent's WebSocket endpoint.
func DialWebSocket(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect %s: %w", url, err)
	}
	return newWSTransport(conn, ReceiveTimeout), nil
}

func newWSTransport(conn *websocket.Conn, timeout time.Duration) *wsTransport {
	t := &wsTransport{
		conn:    conn,
		frames:  make(chan readResult, 1),
		done:    make(chan struct{}),
		timeout: timeout,
	}
	go t.readLoop()
	return t
}

func (t *wsTransport) readLoop() {
	for {
		messageType, data, err := t.conn.ReadMessage()
		select {
		case t.frames <- readResult{messageType, data, err}:
		case <-t.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (t *wsTransport) Send(text string) error {
	if err := t.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("websocket send: %w", err)
	}
	return nil
}

func (t *wsTransport) Receive() (Frame, error) {
	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case r := <-t.frames:
		return classifyRead(r)
	case <-timer.C:
		return Frame{Kind: FrameIdle}, nil
	}
}

func classifyRead(r readResult) (Frame, error) {
	if r.err != nil {
		var closeErr *websocket.CloseError
		if errors.As(r.err, &closeErr) || errors.Is(r.err, io.EOF) {
			return Frame{Kind: FrameClosed}, nil
		}
		return Frame{}, fmt.Errorf("websocket receive: %w", r.err)
	}

	switch r.messageType {
	case websocket.TextMessage:
		return Frame{Kind: FrameText, Text: string(r.data)}, nil
	case websocket.BinaryMessage:
		// Some agents send text payloads as binary frames.
		if !utf8.Valid(r.data) {
			return Frame{}, fmt.Errorf("binary frame is not valid UTF-8")
		}
		return Frame{Kind: FrameText, Text: string(r.data)}, nil
	default:
		return Frame{Kind: FrameIdle}, nil
	}
}

func (t *wsTransport) Close() error {
	close(t.done)
	return t.conn.Close()
}
