package relay

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BioHazard786/Warpmeet/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for SDP with many candidates
)

// Client binds one websocket connection to its Session.
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Session *Session
}

// Serve registers the session and runs both pumps. It returns once the read
// pump stops, after the session has been unregistered.
func (c *Client) Serve(ctx context.Context) {
	c.Hub.Register(c.Session)
	go c.WritePump()
	c.ReadPump(ctx)
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// There is at most one reader on a connection; every inbound message of a
// session is therefore handled in arrival order.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c.Session)
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.Hub.log.Warn("websocket read failed", zap.String("session", c.Session.ID), zap.Error(err))
			}
			return
		}
		c.Hub.Handle(ctx, c.Session, &msg)
	}
}

// WritePump pumps messages from the session's outbound channel to the websocket.
// There is at most one writer on a connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	out := c.Session.Outbound()
	for {
		select {
		case message, ok := <-out:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				c.Hub.log.Debug("websocket write failed", zap.String("session", c.Session.ID), zap.Error(err))
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
