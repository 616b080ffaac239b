package relay

import "sync"

type roomState int

const (
	roomEmpty roomState = iota
	roomActive
	roomDeleted
)

// Room is a named, ordered set of sessions. Members are kept in join order.
type Room struct {
	ID string

	mu      sync.Mutex
	state   roomState
	members []*Session
}

func (r *Room) indexOf(s *Session) int {
	for i, m := range r.members {
		if m == s {
			return i
		}
	}
	return -1
}

func (r *Room) snapshot() []*Session {
	return append([]*Session(nil), r.members...)
}

// Hooks run while the room's lock is held, so events for one room are emitted in
// mutation order. They must not call back into the RoomRegistry.
type Hooks struct {
	// OnJoin fires for every join, including re-joins of an existing member.
	OnJoin func(room *Room, joiner *Session, members []*Session)
	// OnLeave fires after a member is removed; remaining may be empty.
	OnLeave func(room *Room, departed *Session, remaining []*Session)
	// OnDelete fires when the last member leaves and the room is dropped.
	OnDelete func(room *Room)
}

// RoomRegistry maps room identities to rooms. The map lock only guards lookup,
// creation and deletion; membership changes are serialized by each room's own lock.
type RoomRegistry struct {
	hooks Hooks

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRoomRegistry(hooks Hooks) *RoomRegistry {
	return &RoomRegistry{
		hooks: hooks,
		rooms: make(map[string]*Room),
	}
}

func (r *RoomRegistry) getOrCreate(id string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		room = &Room{ID: id, state: roomEmpty}
		r.rooms[id] = room
	}
	return room
}

func (r *RoomRegistry) get(id string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[id]
}

// Join places s in the room derived from rawPath and returns the members in join order.
// A session already in another room leaves it first.
func (r *RoomRegistry) Join(s *Session, rawPath string) (string, []*Session, error) {
	id := SanitizeRoom(rawPath)
	if id == "" {
		return "", nil, newError("join", s.ID, ErrInvalidRoom, rawPath)
	}

	if current := s.Room(); current != "" && current != id {
		r.Leave(s)
	}

	for {
		room := r.getOrCreate(id)
		room.mu.Lock()
		if room.state == roomDeleted {
			// Lost a race with the last member leaving; the map entry is gone, retry.
			room.mu.Unlock()
			continue
		}
		if room.indexOf(s) < 0 {
			room.members = append(room.members, s)
		}
		room.state = roomActive
		s.setRoom(id)
		members := room.snapshot()
		if r.hooks.OnJoin != nil {
			r.hooks.OnJoin(room, s, members)
		}
		room.mu.Unlock()
		return id, members, nil
	}
}

// Leave removes s from its room and deletes the room once empty. It is a no-op for a
// session that is in no room.
func (r *RoomRegistry) Leave(s *Session) {
	id := s.Room()
	if id == "" {
		return
	}
	defer s.setRoom("")

	room := r.get(id)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	i := room.indexOf(s)
	if i < 0 {
		return
	}
	room.members = append(room.members[:i], room.members[i+1:]...)
	remaining := room.snapshot()
	if r.hooks.OnLeave != nil {
		r.hooks.OnLeave(room, s, remaining)
	}

	if len(remaining) == 0 {
		room.state = roomDeleted
		r.mu.Lock()
		if r.rooms[id] == room {
			delete(r.rooms, id)
		}
		r.mu.Unlock()
		if r.hooks.OnDelete != nil {
			r.hooks.OnDelete(room)
		}
	}
}

// RoomOf returns the identity of the room s is in.
func (r *RoomRegistry) RoomOf(s *Session) (string, bool) {
	id := s.Room()
	if id == "" || r.get(id) == nil {
		return "", false
	}
	return id, true
}

// MembersOf returns the current members of room id in join order, or nil.
func (r *RoomRegistry) MembersOf(id string) []*Session {
	room := r.get(id)
	if room == nil {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.state == roomDeleted {
		return nil
	}
	return room.snapshot()
}

// Len is the number of live rooms.
func (r *RoomRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// IDs lists session identities in order.
func IDs(sessions []*Session) []string {
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}
