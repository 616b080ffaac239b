package peer

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

type linkEventKind int

const (
	evStart linkEventKind = iota
	evRemote
	evLocalCandidate
	evTracks
	evICEState
	evRemoteTrack
	evClose
)

type linkEvent struct {
	kind      linkEventKind
	offer     bool
	env       Envelope
	candidate webrtc.ICECandidateInit
	tracks    Tracks
	ice       webrtc.ICEConnectionState
	track     TrackInfo
}

// update is what a link reports back to the orchestrator.
type update struct {
	link  *link
	state State
	track *TrackInfo
}

// link drives the negotiation with one remote identity. All of its state is
// owned by the run goroutine; everything else talks to it through the inbox.
//
// Only the side that wins the tie-break ever creates offers. The other side
// asks it to renegotiate instead, so both ends never hold a local offer at
// once and no rollback is needed.
type link struct {
	remote string
	conn   Conn
	signal Signaler
	log    *zap.Logger
	report func(update)

	box  *inbox[linkEvent]
	done chan struct{}

	state        State
	offerer      bool
	offerPending bool
	reoffer      bool // offer again once the pending offer is answered
	negotiated   bool // one full offer/answer exchange has completed
	tracks       Tracks

	// reported is the last state seen by the orchestrator, owned by its goroutine.
	reported State
}

func newLink(local, remote string, conn Conn, sig Signaler, log *zap.Logger, report func(update)) *link {
	l := &link{
		remote:  remote,
		conn:    conn,
		signal:  sig,
		log:     log.With(zap.String("peer", remote)),
		report:  report,
		box:     newInbox[linkEvent](),
		done:    make(chan struct{}),
		state:   Idle,
		offerer: ShouldOffer(local, remote),
	}
	conn.OnICECandidate(func(c webrtc.ICECandidateInit) {
		l.box.push(linkEvent{kind: evLocalCandidate, candidate: c})
	})
	conn.OnStateChange(func(s webrtc.ICEConnectionState) {
		l.box.push(linkEvent{kind: evICEState, ice: s})
	})
	conn.OnRemoteTrack(func(t TrackInfo) {
		l.box.push(linkEvent{kind: evRemoteTrack, track: t})
	})
	return l
}

func (l *link) send(ev linkEvent) bool { return l.box.push(ev) }

func (l *link) run() {
	defer close(l.done)
	for range l.box.ready {
		for _, ev := range l.box.drain() {
			if l.handle(ev) {
				l.box.close()
				l.conn.Close()
				l.log.Debug("link closed", zap.Stringer("state", l.state))
				return
			}
		}
	}
}

// handle applies one event and reports whether the link reached a terminal state.
func (l *link) handle(ev linkEvent) bool {
	switch ev.kind {
	case evStart:
		l.tracks = ev.tracks
		if err := l.conn.ReplaceTracks(l.tracks); err != nil {
			return l.fail("attach tracks", err)
		}
		if ev.offer {
			return l.offer()
		}
		l.setState(AwaitingAnswer)

	case evRemote:
		if ev.env.SDP != nil {
			return l.description(*ev.env.SDP)
		}
		if ev.env.Renegotiate {
			if !l.offerer {
				l.log.Debug("renegotiation request from the answering side ignored")
				return false
			}
			return l.renegotiate()
		}
		if err := l.conn.AddICECandidate(*ev.env.ICE); err != nil {
			l.log.Debug("remote candidate rejected", zap.Error(err))
		}

	case evLocalCandidate:
		c := ev.candidate
		if err := l.signal.Signal(l.remote, Envelope{ICE: &c}); err != nil {
			l.log.Debug("candidate not sent", zap.Error(err))
		}

	case evTracks:
		l.tracks = ev.tracks
		if err := l.conn.ReplaceTracks(l.tracks); err != nil {
			return l.fail("replace tracks", err)
		}
		if l.state == Idle {
			return false
		}
		if l.offerer {
			return l.renegotiate()
		}
		// The next offer carries the change; until the first exchange
		// completes one is already on its way.
		if l.negotiated {
			if err := l.signal.Signal(l.remote, Envelope{Renegotiate: true}); err != nil {
				l.log.Debug("renegotiation request not sent", zap.Error(err))
			}
		}

	case evICEState:
		switch ev.ice {
		case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
			l.setState(Connected)
		case webrtc.ICEConnectionStateDisconnected:
			l.setState(Disconnected)
			return true
		case webrtc.ICEConnectionStateFailed:
			l.setState(Failed)
			return true
		case webrtc.ICEConnectionStateClosed:
			l.setState(Closed)
			return true
		}

	case evRemoteTrack:
		t := ev.track
		l.report(update{link: l, state: l.state, track: &t})

	case evClose:
		l.state = Closed
		return true
	}
	return false
}

// renegotiate offers now, or right after the pending offer is answered.
func (l *link) renegotiate() bool {
	if l.offerPending {
		l.reoffer = true
		return false
	}
	return l.offer()
}

func (l *link) offer() bool {
	sd, err := l.conn.CreateOffer()
	if err != nil {
		return l.fail("create offer", err)
	}
	if err := l.signal.Signal(l.remote, Envelope{SDP: &sd}); err != nil {
		return l.fail("send offer", err)
	}
	l.offerPending = true
	if l.state != Connected {
		l.setState(OfferSent)
	}
	return false
}

func (l *link) description(sd webrtc.SessionDescription) bool {
	switch sd.Type {
	case webrtc.SDPTypeOffer:
		if l.offerPending {
			// A local offer is outstanding and cannot be rolled back. The
			// peer should have asked for a renegotiation instead.
			l.log.Debug("ignoring colliding offer")
			l.reoffer = true
			return false
		}
		if err := l.conn.SetRemoteDescription(sd); err != nil {
			return l.fail("apply offer", err)
		}
		answer, err := l.conn.CreateAnswer()
		if err != nil {
			return l.fail("create answer", err)
		}
		if err := l.signal.Signal(l.remote, Envelope{SDP: &answer}); err != nil {
			return l.fail("send answer", err)
		}
		l.negotiated = true
		if l.state == Idle {
			l.setState(AwaitingAnswer)
		}

	case webrtc.SDPTypeAnswer:
		if !l.offerPending {
			l.log.Debug("unexpected answer", zap.Stringer("state", l.state))
			return false
		}
		if err := l.conn.SetRemoteDescription(sd); err != nil {
			return l.fail("apply answer", err)
		}
		l.offerPending = false
		l.negotiated = true
		if l.reoffer {
			l.reoffer = false
			return l.offer()
		}

	default:
		l.log.Debug("ignoring description", zap.String("type", sd.Type.String()))
	}
	return false
}

func (l *link) fail(op string, err error) bool {
	err = &Error{Op: op, Peer: l.remote, Err: fmt.Errorf("%w: %v", ErrNegotiation, err)}
	l.log.Warn("negotiation failed", zap.Error(err))
	l.setState(Failed)
	return true
}

func (l *link) setState(s State) {
	if l.state == s {
		return
	}
	l.state = s
	l.report(update{link: l, state: s})
}
