package relay

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRoom(t *testing.T) {
	cases := map[string]string{
		"abc 123!":       "abc123",
		"daily-standup":  "daily-standup",
		"/meet/Team_A?x": "meetTeamAx",
		"café-42":        "caf-42",
		"   ":            "",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeRoom(in), "sanitize %q", in)
	}
}

func TestSanitizeRoomIdempotentAndCharset(t *testing.T) {
	inputs := []string{"abc 123!", "ünïcödé", "a-b_c.d", "../../etc", "🎥room🎥", strings.Repeat("x!", 50)}
	for _, in := range inputs {
		once := SanitizeRoom(in)
		assert.Equal(t, once, SanitizeRoom(once))
		for _, r := range once {
			ok := r == '-' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
			assert.True(t, ok, "unexpected rune %q in %q", r, once)
		}
	}
}

func TestJoinOrderFollowsArrival(t *testing.T) {
	reg := NewRoomRegistry(Hooks{})
	a, b := NewSession("a", 8), NewSession("b", 8)

	_, _, err := reg.Join(a, "R")
	require.NoError(t, err)
	_, members, err := reg.Join(b, "R")
	require.NoError(t, err)
	assert.Equal(t, []*Session{a, b}, members)

	reg2 := NewRoomRegistry(Hooks{})
	_, _, err = reg2.Join(b, "R")
	require.NoError(t, err)
	_, members, err = reg2.Join(a, "R")
	require.NoError(t, err)
	assert.Equal(t, []*Session{b, a}, members)
}

func TestJoinRejectsEmptyRoom(t *testing.T) {
	joins := 0
	reg := NewRoomRegistry(Hooks{OnJoin: func(*Room, *Session, []*Session) { joins++ }})
	s := NewSession("s", 8)

	_, _, err := reg.Join(s, "!!! ???")
	assert.ErrorIs(t, err, ErrInvalidRoom)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, joins)
	_, ok := reg.RoomOf(s)
	assert.False(t, ok)
}

func TestRejoinIsIdempotentButNotifies(t *testing.T) {
	joins := 0
	reg := NewRoomRegistry(Hooks{OnJoin: func(*Room, *Session, []*Session) { joins++ }})
	s := NewSession("s", 8)

	_, _, err := reg.Join(s, "R")
	require.NoError(t, err)
	_, members, err := reg.Join(s, "R")
	require.NoError(t, err)

	assert.Len(t, members, 1)
	assert.Equal(t, 2, joins)
}

func TestJoinStampsJoinTime(t *testing.T) {
	reg := NewRoomRegistry(Hooks{})
	s := NewSession("s", 8)
	assert.False(t, s.ConnectedAt.IsZero())
	assert.True(t, s.JoinedAt().IsZero(), "connected but not joined")

	_, _, err := reg.Join(s, "R")
	require.NoError(t, err)
	joined := s.JoinedAt()
	require.False(t, joined.IsZero())
	assert.False(t, joined.Before(s.ConnectedAt))

	_, _, err = reg.Join(s, "R")
	require.NoError(t, err)
	assert.Equal(t, joined, s.JoinedAt(), "rejoining the same room keeps the time")

	time.Sleep(time.Millisecond)
	_, _, err = reg.Join(s, "other")
	require.NoError(t, err)
	assert.True(t, s.JoinedAt().After(joined))

	reg.Leave(s)
	assert.True(t, s.JoinedAt().IsZero())
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	var deleted []string
	reg := NewRoomRegistry(Hooks{OnDelete: func(r *Room) { deleted = append(deleted, r.ID) }})
	a, b := NewSession("a", 8), NewSession("b", 8)

	_, _, _ = reg.Join(a, "R")
	_, _, _ = reg.Join(b, "R")

	reg.Leave(a)
	assert.Equal(t, []*Session{b}, reg.MembersOf("R"))
	_, ok := reg.RoomOf(a)
	assert.False(t, ok)

	reg.Leave(b)
	assert.Nil(t, reg.MembersOf("R"))
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, []string{"R"}, deleted)
	_, ok = reg.RoomOf(b)
	assert.False(t, ok)
}

func TestLeaveWithoutRoomIsNoop(t *testing.T) {
	reg := NewRoomRegistry(Hooks{})
	assert.NotPanics(t, func() { reg.Leave(NewSession("lonely", 1)) })
}

func TestJoinOtherRoomLeavesPrevious(t *testing.T) {
	var left []string
	reg := NewRoomRegistry(Hooks{OnLeave: func(r *Room, s *Session, _ []*Session) { left = append(left, r.ID) }})
	s := NewSession("s", 8)

	_, _, _ = reg.Join(s, "first")
	room, _, err := reg.Join(s, "second")
	require.NoError(t, err)

	assert.Equal(t, "second", room)
	assert.Equal(t, []string{"first"}, left)
	assert.Nil(t, reg.MembersOf("first"))
	assert.Len(t, reg.MembersOf("second"), 1)
}

func TestConcurrentJoinsNeverLoseMembers(t *testing.T) {
	reg := NewRoomRegistry(Hooks{})
	const n = 200

	sessions := make([]*Session, n)
	for i := range sessions {
		sessions[i] = NewSession(fmt.Sprintf("s%d", i), 1)
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			_, _, err := reg.Join(s, "busy")
			assert.NoError(t, err)
		}(s)
	}
	wg.Wait()

	assert.Len(t, reg.MembersOf("busy"), n)
}

func TestConcurrentChurnKeepsSingleMembership(t *testing.T) {
	reg := NewRoomRegistry(Hooks{})
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := NewSession(fmt.Sprintf("s%d", i), 1)
			for j := 0; j < 20; j++ {
				_, _, err := reg.Join(s, fmt.Sprintf("room-%d", j%3))
				assert.NoError(t, err)
				if j%2 == 1 {
					reg.Leave(s)
				}
			}
			reg.Leave(s)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Len())
}
