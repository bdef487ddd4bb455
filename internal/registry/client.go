package registry

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pkt369/google-meeting-mock/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB is enough for SDP.
	maxMessageSize = 64 * 1024
)

// Client is a wrapper for a single websocket connection (a session).
//
// The registry loop never touches Conn; it only reads SessionID/RoomID
// and writes to Send. The pumps own the connection.
type Client struct {
	// Registry is the registry this client belongs to.
	Registry *Registry

	// Conn is the websocket connection. Nil in tests that drive the
	// registry directly.
	Conn *websocket.Conn

	// SessionID uniquely identifies this connection instance.
	SessionID string

	// RoomID of the room the client is in, or "" if not joined.
	// Written only by the registry loop.
	RoomID string

	// Send is a buffered channel for all outbound messages. The registry
	// writes to this channel and WritePump drains it to the websocket.
	Send chan *protocol.Message
}

// NewClient wraps an upgraded websocket connection with a fresh session id.
func NewClient(reg *Registry, conn *websocket.Conn) *Client {
	return &Client{
		Registry:  reg,
		Conn:      conn,
		SessionID: uuid.NewString(),
		Send:      make(chan *protocol.Message, 256),
	}
}

// ReadPump pumps messages from the websocket connection to the registry.
//
// The application runs ReadPump in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Registry.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("read error", "session", c.SessionID, "err", err)
			}
			break
		}

		c.Registry.Inbound <- &Envelope{Client: c, Message: &msg}
	}
}

// WritePump pumps messages from the registry to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The registry closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(message); err != nil {
				slog.Debug("write error", "session", c.SessionID, "err", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
