package meeting

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pkt369/google-meeting-mock/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Transport is the bidirectional message channel to the signaling server.
// It is satisfied by the websocket implementation and by test fakes.
type Transport interface {
	Connect() error
	Send(msg *protocol.Message)
	Incoming() <-chan *protocol.Message
	Close()
}

// WSTransport manages the WebSocket connection to the signaling server.
type WSTransport struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *protocol.Message
	outgoing  chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewTransport creates a websocket transport for the given server URL.
func NewTransport(serverURL string) *WSTransport {
	return &WSTransport{
		serverURL: serverURL,
		incoming:  make(chan *protocol.Message, 32),
		outgoing:  make(chan *protocol.Message, 32),
		done:      make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the pumps.
func (t *WSTransport) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(t.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	t.conn = conn

	t.conn.SetReadLimit(maxMessageSize)
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go t.readPump()
	go t.writePump()

	return nil
}

// readPump reads messages from the WebSocket connection.
func (t *WSTransport) readPump() {
	defer func() {
		t.conn.Close()
		close(t.incoming)
	}()

	t.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg protocol.Message
		if err := t.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case t.incoming <- &msg:
		case <-t.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (t *WSTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case message := <-t.outgoing:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-t.done:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			t.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues a message to the server. Messages queued after Close are
// discarded.
func (t *WSTransport) Send(msg *protocol.Message) {
	select {
	case t.outgoing <- msg:
	case <-t.done:
	}
}

// Incoming returns the channel of messages from the server. The channel
// is closed when the connection drops.
func (t *WSTransport) Incoming() <-chan *protocol.Message {
	return t.incoming
}

// Close shuts down the connection. Safe to call multiple times.
func (t *WSTransport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
	})
}
