// Package signaling is the client side of the relay protocol.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BioHazard786/Warpmeet/internal/netutil"
	"github.com/BioHazard786/Warpmeet/internal/peer"
	"github.com/BioHazard786/Warpmeet/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	queueSize      = 64
)

var ErrClosed = errors.New("signaling connection closed")

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	conn     *websocket.Conn
	log      *zap.Logger
	incoming chan *protocol.Message
	outgoing chan *protocol.Message
	done     chan struct{}
	lost     chan struct{}

	closeOnce sync.Once
	lostOnce  sync.Once
}

// Dial connects to serverURL, passing name and token as query parameters.
func Dial(ctx context.Context, serverURL, name, token string, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	if name != "" {
		q.Set("name", name)
	}
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()

	// Resolve through the fallback resolver so a broken system DNS does not block joining.
	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = netutil.DefaultResolver.DialContext

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &Client{
		conn:     conn,
		log:      log,
		incoming: make(chan *protocol.Message, queueSize),
		outgoing: make(chan *protocol.Message, queueSize),
		done:     make(chan struct{}),
		lost:     make(chan struct{}),
	}
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	return c, nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.markLost()
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.log.Debug("signaling read stopped", zap.Error(err))
			return
		}
		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.markLost()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.lost:
			return
		}
	}
}

func (c *Client) markLost() {
	c.lostOnce.Do(func() { close(c.lost) })
}

// Send queues msg for the server.
func (c *Client) Send(msg *protocol.Message) error {
	select {
	case <-c.lost:
		return ErrClosed
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.lost:
		return ErrClosed
	case <-c.done:
		return ErrClosed
	}
}

// JoinCall asks the server to place this session in room.
func (c *Client) JoinCall(room string) error {
	return c.send(protocol.TypeJoinCall, protocol.JoinCall{Room: room})
}

// Chat sends a chat message to the current room.
func (c *Client) Chat(body, sender string) error {
	return c.send(protocol.TypeChatMessage, protocol.ChatSend{Body: body, Sender: sender})
}

// Signal relays a negotiation envelope to target. It satisfies peer.Signaler.
func (c *Client) Signal(target string, env peer.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.send(protocol.TypeSignal, protocol.SignalOut{Target: target, Data: data})
}

func (c *Client) send(t protocol.Type, payload any) error {
	msg, err := protocol.New(t, payload)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// Incoming returns the channel for receiving messages. It is closed when
// the connection ends.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// Lost is closed once the connection has dropped or been closed.
func (c *Client) Lost() <-chan struct{} {
	return c.lost
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
