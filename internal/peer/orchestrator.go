package peer

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// EventKind classifies orchestrator events for the view.
type EventKind int

const (
	PeerJoined EventKind = iota
	PeerStateChanged
	PeerLeft
	RemoteTrack
)

// Event is one change the call view should render.
type Event struct {
	Kind  EventKind
	Peer  string
	State State
	Track TrackInfo
}

const eventBuffer = 256

// Orchestrator keeps one link per remote participant of the current call.
//
// The link map is owned by the Run goroutine; exported methods hand work to
// it and are safe for concurrent use.
type Orchestrator struct {
	factory Factory
	signal  Signaler
	log     *zap.Logger

	cmds    chan func()
	updates chan update
	events  chan Event
	stopped chan struct{}

	local  string
	tracks Tracks
	links  map[string]*link
}

func New(factory Factory, sig Signaler, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		factory: factory,
		signal:  sig,
		log:     log,
		cmds:    make(chan func()),
		updates: make(chan update, 64),
		events:  make(chan Event, eventBuffer),
		stopped: make(chan struct{}),
		links:   make(map[string]*link),
	}
}

// Events is closed when Run returns.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Run processes commands until ctx is done, then closes every link.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(o.stopped)
			for _, done := range o.closeAll() {
				<-done
			}
			close(o.events)
			return
		case fn := <-o.cmds:
			fn()
		case u := <-o.updates:
			o.apply(u)
		}
	}
}

// do runs fn on the Run goroutine and waits for it to finish.
func (o *Orchestrator) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case o.cmds <- func() { fn(); close(finished) }:
		<-finished
		return nil
	case <-o.stopped:
		return ErrStopped
	}
}

// Reset closes every link and adopts a new local identity. Links are
// re-derived from the next member list.
func (o *Orchestrator) Reset(local string) error {
	return o.do(func() {
		o.closeAll()
		o.local = local
	})
}

// HandleMembers opens a link to every listed identity not yet known.
func (o *Orchestrator) HandleMembers(members []string) error {
	return o.do(func() {
		if o.local == "" {
			return
		}
		for _, m := range members {
			if m == o.local {
				continue
			}
			if _, ok := o.links[m]; ok {
				continue
			}
			o.open(m, ShouldOffer(o.local, m))
		}
	})
}

// HandleLeft closes the link to a departed identity.
func (o *Orchestrator) HandleLeft(remote string) error {
	return o.do(func() {
		if l, ok := o.links[remote]; ok {
			o.remove(l)
		}
	})
}

// HandleSignal routes a relayed envelope to its link. A description from an
// unknown sender opens a responder link; anything else from one is dropped.
func (o *Orchestrator) HandleSignal(source string, data json.RawMessage) error {
	env, err := ParseEnvelope(data)
	if err != nil {
		o.log.Warn("dropping signal", zap.String("peer", source), zap.Error(err))
		return nil
	}
	return o.do(func() {
		if o.local == "" || source == o.local {
			return
		}
		l, ok := o.links[source]
		if !ok {
			if env.SDP == nil {
				o.log.Debug("signal for unknown peer dropped", zap.String("peer", source))
				return
			}
			if l = o.open(source, false); l == nil {
				return
			}
		}
		l.send(linkEvent{kind: evRemote, env: env})
	})
}

// SetTracks replaces the outgoing media on every link and renegotiates,
// either by offering or by asking the peer to offer.
func (o *Orchestrator) SetTracks(t Tracks) error {
	return o.do(func() {
		o.tracks = t
		for _, l := range o.links {
			l.send(linkEvent{kind: evTracks, tracks: t})
		}
	})
}

// States returns a snapshot of every link's state.
func (o *Orchestrator) States() map[string]State {
	out := make(map[string]State)
	o.do(func() {
		for id, l := range o.links {
			out[id] = l.reported
		}
	})
	return out
}

// Hangup closes every link and waits until their connections are closed.
func (o *Orchestrator) Hangup() {
	var dones []chan struct{}
	if err := o.do(func() { dones = o.closeAll() }); err != nil {
		return
	}
	for _, done := range dones {
		<-done
	}
}

func (o *Orchestrator) open(remote string, offer bool) *link {
	conn, err := o.factory(remote)
	if err != nil {
		o.log.Error("failed to open connection", zap.String("peer", remote), zap.Error(err))
		return nil
	}
	l := newLink(o.local, remote, conn, o.signal, o.log, o.report)
	o.links[remote] = l
	go l.run()
	l.send(linkEvent{kind: evStart, offer: offer, tracks: o.tracks})
	o.emit(Event{Kind: PeerJoined, Peer: remote, State: Idle})
	o.log.Debug("link opened", zap.String("peer", remote), zap.Bool("offer", offer))
	return l
}

func (o *Orchestrator) remove(l *link) {
	delete(o.links, l.remote)
	l.send(linkEvent{kind: evClose})
	o.emit(Event{Kind: PeerLeft, Peer: l.remote, State: Closed})
}

func (o *Orchestrator) closeAll() []chan struct{} {
	dones := make([]chan struct{}, 0, len(o.links))
	for _, l := range o.links {
		o.remove(l)
		dones = append(dones, l.done)
	}
	return dones
}

// report is called from link goroutines.
func (o *Orchestrator) report(u update) {
	select {
	case o.updates <- u:
	case <-o.stopped:
	}
}

func (o *Orchestrator) apply(u update) {
	if cur, ok := o.links[u.link.remote]; !ok || cur != u.link {
		return
	}
	if u.track != nil {
		o.emit(Event{Kind: RemoteTrack, Peer: u.link.remote, State: u.state, Track: *u.track})
		return
	}
	u.link.reported = u.state
	o.emit(Event{Kind: PeerStateChanged, Peer: u.link.remote, State: u.state})
	if u.state.Terminal() {
		// A dropped connection is reported exactly like a departure.
		delete(o.links, u.link.remote)
		o.emit(Event{Kind: PeerLeft, Peer: u.link.remote, State: u.state})
	}
}

func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		o.log.Warn("view not keeping up, event dropped", zap.String("peer", ev.Peer))
	}
}
