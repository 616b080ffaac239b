package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BioHazard786/Warpmeet/internal/metrics"
	"github.com/BioHazard786/Warpmeet/internal/protocol"
	"github.com/BioHazard786/Warpmeet/internal/store"
)

// ChatRelay persists chat messages and fans them out to the sender's room.
type ChatRelay struct {
	rooms   *RoomRegistry
	store   store.Store
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewChatRelay(rooms *RoomRegistry, st store.Store, log *zap.Logger, m *metrics.Metrics) *ChatRelay {
	return &ChatRelay{
		rooms:   rooms,
		store:   st,
		log:     log,
		metrics: m,
		now:     time.Now,
		last:    make(map[string]time.Time),
	}
}

// stamp returns the persistence timestamp for room, never earlier than the previous one.
func (c *ChatRelay) stamp(room string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now().UTC()
	if last, ok := c.last[room]; ok && ts.Before(last) {
		ts = last
	}
	c.last[room] = ts
	return ts
}

func (c *ChatRelay) forget(room string) {
	c.mu.Lock()
	delete(c.last, room)
	c.mu.Unlock()
}

// Send persists body and broadcasts it to every member of the sender's room,
// sender included. The broadcast happens even when persistence fails; that
// failure is returned after the fact for logging.
func (c *ChatRelay) Send(ctx context.Context, s *Session, in protocol.ChatSend) error {
	room, ok := c.rooms.RoomOf(s)
	if !ok {
		return newError("chat", s.ID, ErrNoActiveRoom, "")
	}

	sender := in.Sender
	if sender == "" {
		sender = s.Name
	}
	rec := store.Message{
		Room:      room,
		Sender:    sender,
		Body:      in.Body,
		Session:   s.ID,
		Timestamp: c.stamp(room),
	}

	var persistErr error
	if err := c.store.AppendMessage(ctx, room, rec); err != nil {
		c.metrics.ChatPersistErrs.Inc()
		persistErr = newError("chat", s.ID, fmt.Errorf("%w: %v", ErrPersistence, err), room)
	}

	out := protocol.MustNew(protocol.TypeChatMessage, toWire(rec))
	for _, m := range c.rooms.MembersOf(room) {
		if !m.Deliver(out) {
			c.log.Debug("chat message dropped", zap.String("room", room), zap.String("session", m.ID))
		}
	}
	c.metrics.ChatMessages.Inc()
	return persistErr
}

// ReplayHistory sends the room's persisted messages, oldest first, to s only.
func (c *ChatRelay) ReplayHistory(ctx context.Context, s *Session, room string) error {
	msgs, err := c.store.Messages(ctx, room)
	if err != nil {
		c.metrics.ChatPersistErrs.Inc()
		return newError("chat history", s.ID, fmt.Errorf("%w: %v", ErrPersistence, err), room)
	}

	history := protocol.ChatHistory{Messages: make([]protocol.ChatMessage, len(msgs))}
	for i, m := range msgs {
		history.Messages[i] = toWire(m)
	}
	s.Deliver(protocol.MustNew(protocol.TypeChatHistory, history))
	return nil
}

func toWire(m store.Message) protocol.ChatMessage {
	return protocol.ChatMessage{
		Body:      m.Body,
		Sender:    m.Sender,
		Session:   m.Session,
		Timestamp: m.Timestamp,
	}
}
