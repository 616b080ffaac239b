package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It is the default when no driver is configured.
type Memory struct {
	mu       sync.RWMutex
	messages map[string][]Message
	meetings map[string][]Meeting
}

func NewMemory() *Memory {
	return &Memory{
		messages: make(map[string][]Message),
		meetings: make(map[string][]Meeting),
	}
}

func (m *Memory) AppendMessage(_ context.Context, room string, msg Message) error {
	msg.Room = room
	m.mu.Lock()
	m.messages[room] = append(m.messages[room], msg)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Messages(_ context.Context, room string) ([]Message, error) {
	m.mu.RLock()
	out := append([]Message(nil), m.messages[room]...)
	m.mu.RUnlock()
	sortMessages(out)
	return out, nil
}

func (m *Memory) AppendMeeting(_ context.Context, meeting Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.meetings[meeting.User] = append(m.meetings[meeting.User], meeting)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Meetings(_ context.Context, user string) ([]Meeting, error) {
	m.mu.RLock()
	out := append([]Meeting(nil), m.meetings[user]...)
	m.mu.RUnlock()
	sortMeetings(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }
