package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// fakeConn negotiates in memory. It reports ICE connected as soon as both
// descriptions are in place and emits one local candidate per description.
type fakeConn struct {
	remoteID string

	mu         sync.Mutex
	seq        int
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	tracks     []Tracks
	offers     int
	lateICE    int

	haveLocalOffer bool
	connected  bool
	closed     bool

	onCandidate func(webrtc.ICECandidateInit)
	onState     func(webrtc.ICEConnectionState)
	onTrack     func(TrackInfo)
}

func (c *fakeConn) ReplaceTracks(t Tracks) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append(c.tracks, t)
	return nil
}

func (c *fakeConn) describe(t webrtc.SDPType) webrtc.SessionDescription {
	c.mu.Lock()
	c.seq++
	sd := webrtc.SessionDescription{Type: t, SDP: fmt.Sprintf("%s-%d", t, c.seq)}
	c.local = &sd
	if t == webrtc.SDPTypeOffer {
		c.offers++
		c.haveLocalOffer = true
	}
	cand := webrtc.ICECandidateInit{Candidate: fmt.Sprintf("candidate:%d", c.seq)}
	cb := c.onCandidate
	c.mu.Unlock()

	if cb != nil {
		cb(cand)
	}
	return sd
}

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	return c.describe(webrtc.SDPTypeOffer), nil
}

func (c *fakeConn) CreateAnswer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	hasOffer := c.remote != nil && c.remote.Type == webrtc.SDPTypeOffer
	c.mu.Unlock()
	if !hasOffer {
		return webrtc.SessionDescription{}, errors.New("no remote offer")
	}
	sd := c.describe(webrtc.SDPTypeAnswer)
	c.maybeConnect()
	return sd, nil
}

func (c *fakeConn) SetRemoteDescription(sd webrtc.SessionDescription) error {
	c.mu.Lock()
	// Like pion, a remote offer cannot land on an unanswered local one.
	if sd.Type == webrtc.SDPTypeOffer && c.haveLocalOffer {
		c.mu.Unlock()
		return errors.New("remote offer while have-local-offer")
	}
	if sd.Type == webrtc.SDPTypeAnswer {
		c.haveLocalOffer = false
	}
	c.remote = &sd
	c.mu.Unlock()
	if sd.Type == webrtc.SDPTypeAnswer {
		c.maybeConnect()
	}
	return nil
}

func (c *fakeConn) AddICECandidate(ic webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		c.lateICE++
		return errors.New("remote description not set")
	}
	c.candidates = append(c.candidates, ic)
	return nil
}

func (c *fakeConn) maybeConnect() {
	c.mu.Lock()
	ready := !c.connected && c.local != nil && c.remote != nil
	if ready {
		c.connected = true
	}
	cb := c.onState
	c.mu.Unlock()
	if ready && cb != nil {
		cb(webrtc.ICEConnectionStateConnected)
	}
}

// fire simulates a transport state change.
func (c *fakeConn) fire(s webrtc.ICEConnectionState) {
	c.mu.Lock()
	cb := c.onState
	c.mu.Unlock()
	cb(s)
}

func (c *fakeConn) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onCandidate = f
	c.mu.Unlock()
}

func (c *fakeConn) OnStateChange(f func(webrtc.ICEConnectionState)) {
	c.mu.Lock()
	c.onState = f
	c.mu.Unlock()
}

func (c *fakeConn) OnRemoteTrack(f func(TrackInfo)) {
	c.mu.Lock()
	c.onTrack = f
	c.mu.Unlock()
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) offerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offers
}

// fakeFactory hands out fakeConns and remembers them by remote identity.
type fakeFactory struct {
	mu    sync.Mutex
	conns map[string][]*fakeConn
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{conns: make(map[string][]*fakeConn)}
}

func (f *fakeFactory) open(remote string) (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConn{remoteID: remote}
	f.conns[remote] = append(f.conns[remote], c)
	return c, nil
}

func (f *fakeFactory) latest(remote string) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.conns[remote]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.conns {
		n += len(l)
	}
	return n
}

type sent struct {
	target string
	env    Envelope
}

// recorder is a Signaler that keeps every envelope.
type recorder struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recorder) Signal(target string, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{target, env})
	return nil
}

func (r *recorder) requests(target string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.target == target && s.env.Renegotiate {
			n++
		}
	}
	return n
}

func (r *recorder) descriptions(target string, t webrtc.SDPType) []webrtc.SessionDescription {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []webrtc.SessionDescription
	for _, s := range r.sent {
		if s.target == target && s.env.SDP != nil && s.env.SDP.Type == t {
			out = append(out, *s.env.SDP)
		}
	}
	return out
}

// fakeRelay connects orchestrators by identity, forwarding envelopes as
// the relay would: serialized and tagged with the sender.
type fakeRelay struct {
	mu    sync.Mutex
	peers map[string]*Orchestrator
}

type relayPort struct {
	relay *fakeRelay
	self  string
}

func (p relayPort) Signal(target string, env Envelope) error {
	p.relay.mu.Lock()
	dst := p.relay.peers[target]
	p.relay.mu.Unlock()
	if dst == nil {
		return errors.New("unknown target")
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return dst.HandleSignal(p.self, data)
}

// tally counts the offers each identity sends through a countingPort.
type tally struct {
	mu     sync.Mutex
	offers map[string]int
}

func (t *tally) count(self string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offers[self]
}

type countingPort struct {
	relayPort
	tally *tally
}

func (p countingPort) Signal(target string, env Envelope) error {
	if env.SDP != nil && env.SDP.Type == webrtc.SDPTypeOffer {
		p.tally.mu.Lock()
		p.tally.offers[p.self]++
		p.tally.mu.Unlock()
	}
	return p.relayPort.Signal(target, env)
}
