package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const keyPrefix = "warpmeet:"

func messagesKey(room string) string { return keyPrefix + "room:" + room + ":messages" }
func meetingsKey(user string) string { return keyPrefix + "user:" + user + ":meetings" }

// Redis keeps one msgpack-encoded list per room and per user.
type Redis struct {
	client *redis.Client
}

// OpenRedis connects and pings the server at addr.
func OpenRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) AppendMessage(ctx context.Context, room string, msg Message) error {
	msg.Room = room
	b, err := msgpack.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return r.client.RPush(ctx, messagesKey(room), b).Err()
}

func (r *Redis) Messages(ctx context.Context, room string) ([]Message, error) {
	raw, err := r.client.LRange(ctx, messagesKey(room), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := msgpack.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, msg)
	}
	sortMessages(out)
	return out, nil
}

func (r *Redis) AppendMeeting(ctx context.Context, m Meeting) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	b, err := msgpack.Marshal(&m)
	if err != nil {
		return fmt.Errorf("encode meeting: %w", err)
	}
	return r.client.RPush(ctx, meetingsKey(m.User), b).Err()
}

func (r *Redis) Meetings(ctx context.Context, user string) ([]Meeting, error) {
	raw, err := r.client.LRange(ctx, meetingsKey(user), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Meeting, 0, len(raw))
	for _, item := range raw {
		var m Meeting
		if err := msgpack.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode meeting: %w", err)
		}
		out = append(out, m)
	}
	sortMeetings(out)
	return out, nil
}

func (r *Redis) Close() error { return r.client.Close() }
