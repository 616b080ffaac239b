package relay

import (
	"go.uber.org/zap"

	"github.com/BioHazard786/Warpmeet/internal/protocol"
)

// Presence emits member-joined and member-left events. It is driven by RoomRegistry hooks.
type Presence struct {
	log *zap.Logger
}

func (p *Presence) joined(room *Room, joiner *Session, members []*Session) {
	msg := protocol.MustNew(protocol.TypeMemberJoined, protocol.MemberJoined{
		Joiner:  joiner.ID,
		Members: IDs(members),
	})
	p.broadcast(room, msg, members)
}

func (p *Presence) left(room *Room, departed *Session, remaining []*Session) {
	msg := protocol.MustNew(protocol.TypeMemberLeft, protocol.MemberLeft{Departed: departed.ID})
	p.broadcast(room, msg, remaining)
}

func (p *Presence) broadcast(room *Room, msg *protocol.Message, to []*Session) {
	for _, m := range to {
		if !m.Deliver(msg) {
			p.log.Debug("presence event dropped",
				zap.String("room", room.ID),
				zap.String("session", m.ID),
				zap.String("type", string(msg.Type)))
		}
	}
}
