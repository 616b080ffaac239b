package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BioHazard786/Warpmeet/internal/protocol"
)

// Session is one connected participant. It lives from transport connect to disconnect.
type Session struct {
	ID          string
	Name        string
	ConnectedAt time.Time

	mu       sync.Mutex
	room     string
	joinedAt time.Time
	send     chan *protocol.Message
	closed   bool
}

// NewSession allocates a session with a fresh identity and an outbound buffer of size buffer.
func NewSession(name string, buffer int) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Name:        name,
		ConnectedAt: time.Now().UTC(),
		send:        make(chan *protocol.Message, buffer),
	}
}

// Room returns the identity of the room the session is in, or "".
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// JoinedAt is when the session entered its current room, zero outside one.
func (s *Session) JoinedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinedAt
}

// setRoom keeps the join time across a repeated join of the same room.
func (s *Session) setRoom(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case id == "":
		s.joinedAt = time.Time{}
	case id != s.room:
		s.joinedAt = time.Now().UTC()
	}
	s.room = id
}

// Outbound is drained by the session's write pump. It is closed on unregister.
func (s *Session) Outbound() <-chan *protocol.Message {
	return s.send
}

// Deliver queues msg without blocking. It reports false when the buffer is full
// or the session is already closed; the event is then lost for this session.
func (s *Session) Deliver(msg *protocol.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// SessionRegistry indexes connected sessions by identity.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

func (r *SessionRegistry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

func (r *SessionRegistry) Remove(s *Session) {
	r.mu.Lock()
	if r.sessions[s.ID] == s {
		delete(r.sessions, s.ID)
	}
	r.mu.Unlock()
}

func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
