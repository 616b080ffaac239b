// Package store persists chat messages and meeting history in an external document store.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Message is one persisted chat message. Messages are immutable once appended.
type Message struct {
	Room      string    `msgpack:"room"`
	Sender    string    `msgpack:"sender"`
	Body      string    `msgpack:"body"`
	Session   string    `msgpack:"session"`
	Timestamp time.Time `msgpack:"timestamp"`
}

// Meeting records that a user took part in a meeting.
type Meeting struct {
	ID          string    `msgpack:"id" json:"id"`
	User        string    `msgpack:"user" json:"user_id"`
	MeetingCode string    `msgpack:"meeting_code" json:"meetingCode"`
	CreatedAt   time.Time `msgpack:"created_at" json:"createdAt"`
}

// Store is the document store consulted by the relay.
//
// AppendMessage and Messages are the append(room, record) and
// queryOrdered(room, timestamp) operations for chat; AppendMeeting and
// Meetings do the same for meeting history keyed by user.
type Store interface {
	AppendMessage(ctx context.Context, room string, msg Message) error
	// Messages returns the room's messages ordered by timestamp ascending.
	Messages(ctx context.Context, room string) ([]Message, error)

	AppendMeeting(ctx context.Context, m Meeting) error
	// Meetings returns the user's meetings, newest first.
	Meetings(ctx context.Context, user string) ([]Meeting, error)

	Close() error
}

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// Options configures Open.
type Options struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DSN           string
}

// Open connects the store selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverRedis:
		return OpenRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	case DriverSQLite, DriverPostgres:
		return OpenSQL(opts.Driver, opts.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

func sortMeetings(ms []Meeting) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].CreatedAt.After(ms[j].CreatedAt)
	})
}
