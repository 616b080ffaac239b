package relay

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BioHazard786/Warpmeet/internal/metrics"
	"github.com/BioHazard786/Warpmeet/internal/protocol"
	"github.com/BioHazard786/Warpmeet/internal/store"
)

// historyTimeout bounds the one-off chat history read performed on join.
const historyTimeout = 5 * time.Second

// Hub is the central brain of the signaling server.
// It owns the session and room registries and routes every inbound message.
//
// Unlike a single event loop, the hub is called concurrently from every
// connection's read pump. Rooms serialize their own membership changes, so
// unrelated rooms never wait on each other.
type Hub struct {
	Sessions *SessionRegistry
	Rooms    *RoomRegistry
	Chat     *ChatRelay

	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewHub wires the registries, presence broadcaster and chat relay together.
func NewHub(st store.Store, log *zap.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}

	h := &Hub{
		Sessions: NewSessionRegistry(),
		log:      log,
		metrics:  m,
	}
	presence := &Presence{log: log}
	h.Rooms = NewRoomRegistry(Hooks{
		OnJoin:  presence.joined,
		OnLeave: presence.left,
		OnDelete: func(room *Room) {
			h.Chat.forget(room.ID)
			log.Info("room deleted", zap.String("room", room.ID))
		},
	})
	h.Chat = NewChatRelay(h.Rooms, st, log, m)
	return h
}

// Register adds a freshly connected session and tells it its identity.
func (h *Hub) Register(s *Session) {
	h.Sessions.Add(s)
	h.metrics.Sessions.Set(float64(h.Sessions.Len()))
	s.Deliver(protocol.MustNew(protocol.TypeConnected, protocol.Connected{ID: s.ID, Name: s.Name}))
	h.log.Info("session registered", zap.String("session", s.ID), zap.String("name", s.Name))
}

// Unregister removes s from its room and the registry and closes its outbound channel.
func (h *Hub) Unregister(s *Session) {
	h.Rooms.Leave(s)
	h.Sessions.Remove(s)
	s.close()
	h.metrics.Sessions.Set(float64(h.Sessions.Len()))
	h.metrics.Rooms.Set(float64(h.Rooms.Len()))
	h.log.Info("session unregistered", zap.String("session", s.ID))
}

// Handle dispatches one inbound message from s. Errors are logged and never
// escape to the caller; a bad message only affects its sender.
func (h *Hub) Handle(ctx context.Context, s *Session, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeJoinCall:
		var in protocol.JoinCall
		if !h.decode(s, msg, &in) {
			return
		}
		h.join(ctx, s, in.Room)

	case protocol.TypeSignal:
		var in protocol.SignalOut
		if !h.decode(s, msg, &in) {
			return
		}
		if err := h.relaySignal(s, in); err != nil {
			h.log.Warn("signal dropped", zap.Error(err))
		}

	case protocol.TypeChatMessage:
		var in protocol.ChatSend
		if !h.decode(s, msg, &in) {
			return
		}
		err := h.Chat.Send(ctx, s, in)
		switch {
		case errors.Is(err, ErrNoActiveRoom):
			// Not reported to the sender.
			h.log.Debug("chat dropped", zap.Error(err))
		case err != nil:
			h.log.Error("chat persistence failed", zap.Error(err))
		}

	case protocol.TypeConnected, protocol.TypeMemberJoined, protocol.TypeMemberLeft,
		protocol.TypeChatHistory, protocol.TypeError:
		h.log.Warn("server-bound message has client-bound type",
			zap.String("session", s.ID), zap.String("type", string(msg.Type)))

	default:
		h.log.Warn("unknown message type", zap.String("session", s.ID), zap.String("type", string(msg.Type)))
	}
}

func (h *Hub) decode(s *Session, msg *protocol.Message, v any) bool {
	if err := msg.Decode(v); err != nil {
		h.log.Warn("bad message", zap.String("session", s.ID), zap.Error(err))
		s.Deliver(protocol.MustNew(protocol.TypeError, protocol.Error{
			Code:    protocol.CodeBadMessage,
			Message: err.Error(),
		}))
		return false
	}
	return true
}

func (h *Hub) join(ctx context.Context, s *Session, rawPath string) {
	room, members, err := h.Rooms.Join(s, rawPath)
	if err != nil {
		h.metrics.JoinsRejected.Inc()
		h.log.Info("join rejected", zap.Error(err))
		s.Deliver(protocol.MustNew(protocol.TypeError, protocol.Error{
			Code:    protocol.CodeInvalidRoom,
			Message: "room name must contain letters, digits or hyphens",
		}))
		return
	}
	h.metrics.Rooms.Set(float64(h.Rooms.Len()))
	h.log.Info("session joined room",
		zap.String("session", s.ID),
		zap.String("room", room),
		zap.Int("members", len(members)))

	ctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()
	if err := h.Chat.ReplayHistory(ctx, s, room); err != nil {
		h.log.Error("chat history unavailable", zap.Error(err))
	}
}

// relaySignal forwards an opaque envelope to its target. The payload is never inspected.
func (h *Hub) relaySignal(from *Session, in protocol.SignalOut) error {
	target, ok := h.Sessions.Get(in.Target)
	if !ok {
		h.metrics.SignalsDropped.WithLabelValues(metrics.DropReasonUnknownTarget).Inc()
		return newError("signal", from.ID, ErrUnknownTarget, in.Target)
	}

	out := protocol.MustNew(protocol.TypeSignal, protocol.SignalIn{Source: from.ID, Data: in.Data})
	if !target.Deliver(out) {
		h.metrics.SignalsDropped.WithLabelValues(metrics.DropReasonBackpressure).Inc()
		h.log.Debug("signal target not accepting", zap.String("target", target.ID))
		return nil
	}
	h.metrics.SignalsRelayed.Inc()
	return nil
}
