package signaling

import (
	"go.uber.org/zap"

	"github.com/BioHazard786/Warpmeet/internal/protocol"
)

// Handler decodes incoming signaling messages into typed events.
//
// Events keep the order the server sent them in: a member-left is never
// overtaken by a signal that was sent before it. The values delivered are
// protocol.Connected, protocol.MemberJoined, protocol.MemberLeft,
// protocol.SignalIn, protocol.ChatMessage, protocol.ChatHistory and
// protocol.Error.
type Handler struct {
	client *Client
	events chan any
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client: client,
		events: make(chan any, queueSize),
	}
}

// Events is closed after the connection ends and Start returns.
func (h *Handler) Events() <-chan any {
	return h.events
}

// Start begins listening to incoming messages and routing them.
func (h *Handler) Start() {
	defer close(h.events)
	for msg := range h.client.Incoming() {
		var ev any
		switch msg.Type {
		case protocol.TypeConnected:
			ev = &protocol.Connected{}
		case protocol.TypeMemberJoined:
			ev = &protocol.MemberJoined{}
		case protocol.TypeMemberLeft:
			ev = &protocol.MemberLeft{}
		case protocol.TypeSignal:
			ev = &protocol.SignalIn{}
		case protocol.TypeChatMessage:
			ev = &protocol.ChatMessage{}
		case protocol.TypeChatHistory:
			ev = &protocol.ChatHistory{}
		case protocol.TypeError:
			ev = &protocol.Error{}
		case protocol.TypeJoinCall:
			h.client.log.Warn("client received server-bound message", zap.String("type", string(msg.Type)))
			continue
		default:
			h.client.log.Debug("ignoring message", zap.String("type", string(msg.Type)))
			continue
		}

		if err := msg.Decode(ev); err != nil {
			h.client.log.Warn("bad message from server", zap.Error(err))
			continue
		}
		select {
		case h.events <- deref(ev):
		case <-h.client.done:
			return
		}
	}
}

func deref(ev any) any {
	switch v := ev.(type) {
	case *protocol.Connected:
		return *v
	case *protocol.MemberJoined:
		return *v
	case *protocol.MemberLeft:
		return *v
	case *protocol.SignalIn:
		return *v
	case *protocol.ChatMessage:
		return *v
	case *protocol.ChatHistory:
		return *v
	case *protocol.Error:
		return *v
	}
	return ev
}
