package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type names one of the events exchanged over the signaling websocket.
type Type string

// The complete set of event types. Anything else on the wire is rejected by Decode.
const (
	TypeConnected    Type = "connected"
	TypeJoinCall     Type = "join-call"
	TypeMemberJoined Type = "member-joined"
	TypeMemberLeft   Type = "member-left"
	TypeSignal       Type = "signal"
	TypeChatMessage  Type = "chat-message"
	TypeChatHistory  Type = "chat-history"
	TypeError        Type = "error"
)

// Known reports whether t is one of the declared event types.
func (t Type) Known() bool {
	switch t {
	case TypeConnected, TypeJoinCall, TypeMemberJoined, TypeMemberLeft,
		TypeSignal, TypeChatMessage, TypeChatHistory, TypeError:
		return true
	}
	return false
}

// Message is the envelope of every websocket frame in both directions.
type Message struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Connected is sent once per transport connection with the assigned session identity.
type Connected struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// JoinCall asks the relay to place the session in a room.
type JoinCall struct {
	Room string `json:"room"`
}

// MemberJoined carries the joiner and the full member list in join order.
type MemberJoined struct {
	Joiner  string   `json:"joiner"`
	Members []string `json:"members"`
}

// MemberLeft names the session that left the room.
type MemberLeft struct {
	Departed string `json:"departed"`
}

// SignalOut is a client->server negotiation envelope.
type SignalOut struct {
	Target string          `json:"target"`
	Data   json.RawMessage `json:"data"`
}

// SignalIn is a server->client negotiation envelope.
type SignalIn struct {
	Source string          `json:"source"`
	Data   json.RawMessage `json:"data"`
}

// ChatSend is a chat message submitted by a client.
type ChatSend struct {
	Body   string `json:"body"`
	Sender string `json:"sender"`
}

// ChatMessage is the broadcast and history form of a persisted chat message.
type ChatMessage struct {
	Body      string    `json:"body"`
	Sender    string    `json:"sender"`
	Session   string    `json:"session"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatHistory is the ordered chat replay sent to a session after it joins.
type ChatHistory struct {
	Messages []ChatMessage `json:"messages"`
}

// Error codes carried by TypeError.
const (
	CodeInvalidRoom = "invalid_room"
	CodeBadMessage  = "bad_message"
)

// Error reports a rejected request back to the client.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// New builds a Message with payload marshalled as JSON.
func New(t Type, payload any) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Message{Type: t, Payload: b}, nil
}

// MustNew is New for payload types that always marshal.
func MustNew(t Type, payload any) *Message {
	m, err := New(t, payload)
	if err != nil {
		panic(err)
	}
	return m
}

// Decode unmarshals the payload into v after checking the type is known.
func (m *Message) Decode(v any) error {
	if !m.Type.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	if len(m.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrBadPayload, m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadPayload, m.Type, err)
	}
	return nil
}
