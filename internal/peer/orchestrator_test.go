package peer

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func startOrchestrator(t *testing.T, local string, f Factory, sig Signaler) *Orchestrator {
	t.Helper()
	o := New(f, sig, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)
	t.Cleanup(cancel)
	require.NoError(t, o.Reset(local))
	return o
}

func envelope(t *testing.T, env Envelope) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func eventuallyState(t *testing.T, o *Orchestrator, remote string, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return o.States()[remote] == want
	}, waitFor, tick, "peer %s never reached %s (now %v)", remote, want, o.States())
}

func nextEvent(t *testing.T, o *Orchestrator, kind EventKind, remote string) Event {
	t.Helper()
	timeout := time.After(waitFor)
	for {
		select {
		case ev := <-o.Events():
			if ev.Kind == kind && ev.Peer == remote {
				return ev
			}
		case <-timeout:
			t.Fatalf("no event %d for %s", kind, remote)
		}
	}
}

func TestShouldOfferIsAntisymmetric(t *testing.T) {
	ids := []string{"a", "b", "B", "3f2c", "3f2d", "ffff-0000", "0000-ffff"}
	for _, x := range ids {
		for _, y := range ids {
			if x == y {
				assert.False(t, ShouldOffer(x, y))
				continue
			}
			assert.NotEqual(t, ShouldOffer(x, y), ShouldOffer(y, x), "%s vs %s", x, y)
		}
	}
	assert.True(t, ShouldOffer("b", "a"), "the greater identity offers")
}

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope(json.RawMessage(`{"sdp":{"type":"offer","sdp":"v=0"}}`))
	require.NoError(t, err)
	require.NotNil(t, env.SDP)
	assert.Equal(t, webrtc.SDPTypeOffer, env.SDP.Type)

	env, err = ParseEnvelope(json.RawMessage(`{"ice":{"candidate":"candidate:1"}}`))
	require.NoError(t, err)
	require.NotNil(t, env.ICE)

	env, err = ParseEnvelope(json.RawMessage(`{"renegotiate":true}`))
	require.NoError(t, err)
	assert.True(t, env.Renegotiate)

	for _, bad := range []string{
		`{}`,
		`not json`,
		`{"renegotiate":false}`,
		`{"sdp":{"type":"offer","sdp":""},"ice":{"candidate":""}}`,
		`{"renegotiate":true,"ice":{"candidate":"candidate:1"}}`,
	} {
		_, err := ParseEnvelope(json.RawMessage(bad))
		assert.ErrorIs(t, err, ErrBadEnvelope, bad)
	}
}

func TestGreaterIdentityOffers(t *testing.T) {
	ff, rec := newFakeFactory(), &recorder{}
	o := startOrchestrator(t, "b", ff.open, rec)

	require.NoError(t, o.HandleMembers([]string{"a", "b"}))

	require.Eventually(t, func() bool { return len(rec.descriptions("a", webrtc.SDPTypeOffer)) == 1 }, waitFor, tick)
	eventuallyState(t, o, "a", OfferSent)

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-from-a"}
	require.NoError(t, o.HandleSignal("a", envelope(t, Envelope{SDP: &answer})))
	eventuallyState(t, o, "a", Connected)

	conn := ff.latest("a")
	conn.mu.Lock()
	assert.Len(t, conn.tracks, 1, "tracks attached before the offer")
	conn.mu.Unlock()
	assert.Equal(t, 1, conn.offerCount())
}

func TestLesserIdentityWaitsAndAnswers(t *testing.T) {
	ff, rec := newFakeFactory(), &recorder{}
	o := startOrchestrator(t, "a", ff.open, rec)

	require.NoError(t, o.HandleMembers([]string{"a", "b"}))
	eventuallyState(t, o, "b", AwaitingAnswer)
	assert.Empty(t, rec.descriptions("b", webrtc.SDPTypeOffer))

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-from-b"}
	require.NoError(t, o.HandleSignal("b", envelope(t, Envelope{SDP: &offer})))

	require.Eventually(t, func() bool { return len(rec.descriptions("b", webrtc.SDPTypeAnswer)) == 1 }, waitFor, tick)
	eventuallyState(t, o, "b", Connected)
	assert.Zero(t, ff.latest("b").offerCount())
}

func TestMemberListIsIdempotent(t *testing.T) {
	ff := newFakeFactory()
	o := startOrchestrator(t, "m", ff.open, &recorder{})

	require.NoError(t, o.HandleMembers([]string{"a", "m"}))
	require.NoError(t, o.HandleMembers([]string{"a", "m", "z"}))
	require.NoError(t, o.HandleMembers([]string{"a", "m", "z"}))

	ids := make([]string, 0)
	for id := range o.States() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "z"}, ids)
	assert.Equal(t, 2, ff.count())
}

func TestCandidateForUnknownPeerIsDropped(t *testing.T) {
	ff := newFakeFactory()
	o := startOrchestrator(t, "a", ff.open, &recorder{})

	ice := webrtc.ICECandidateInit{Candidate: "candidate:1"}
	require.NoError(t, o.HandleSignal("ghost", envelope(t, Envelope{ICE: &ice})))

	assert.Empty(t, o.States())
	assert.Zero(t, ff.count())
}

func TestOfferFromUnknownSenderOpensLink(t *testing.T) {
	ff, rec := newFakeFactory(), &recorder{}
	o := startOrchestrator(t, "a", ff.open, rec)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-from-c"}
	require.NoError(t, o.HandleSignal("c", envelope(t, Envelope{SDP: &offer})))

	require.Eventually(t, func() bool { return len(rec.descriptions("c", webrtc.SDPTypeAnswer)) == 1 }, waitFor, tick)
	eventuallyState(t, o, "c", Connected)
}

func TestCandidatesAppliedAfterDescription(t *testing.T) {
	ff, rec := newFakeFactory(), &recorder{}
	o := startOrchestrator(t, "a", ff.open, rec)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-from-b"}
	ice := webrtc.ICECandidateInit{Candidate: "candidate:b1"}
	require.NoError(t, o.HandleSignal("b", envelope(t, Envelope{SDP: &offer})))
	require.NoError(t, o.HandleSignal("b", envelope(t, Envelope{ICE: &ice})))

	eventuallyState(t, o, "b", Connected)
	conn := ff.latest("b")
	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.candidates) == 1
	}, waitFor, tick)
	assert.Zero(t, conn.lateICE, "envelopes are applied in arrival order")
}

func TestTransportFailureIsReportedAsDeparture(t *testing.T) {
	for _, s := range []webrtc.ICEConnectionState{webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateDisconnected} {
		t.Run(s.String(), func(t *testing.T) {
			ff := newFakeFactory()
			o := startOrchestrator(t, "a", ff.open, &recorder{})
			require.NoError(t, o.HandleMembers([]string{"a", "b"}))
			nextEvent(t, o, PeerJoined, "b")
			eventuallyState(t, o, "b", AwaitingAnswer)

			conn := ff.latest("b")
			conn.fire(s)

			left := nextEvent(t, o, PeerLeft, "b")
			assert.True(t, left.State.Terminal())
			require.Eventually(t, conn.isClosed, waitFor, tick)
			assert.NotContains(t, o.States(), "b")
		})
	}
}

func TestMemberLeftClosesLink(t *testing.T) {
	ff := newFakeFactory()
	o := startOrchestrator(t, "a", ff.open, &recorder{})
	require.NoError(t, o.HandleMembers([]string{"a", "b", "c"}))

	require.NoError(t, o.HandleLeft("b"))

	nextEvent(t, o, PeerLeft, "b")
	require.Eventually(t, ff.latest("b").isClosed, waitFor, tick)
	assert.False(t, ff.latest("c").isClosed())
	assert.NotContains(t, o.States(), "b")

	require.NoError(t, o.HandleLeft("nobody"))
}

func TestTrackChangeRenegotiatesEveryLink(t *testing.T) {
	ff, rec := newFakeFactory(), &recorder{}
	o := startOrchestrator(t, "m", ff.open, rec)

	// "m" offers to "a" and answers "z".
	require.NoError(t, o.HandleMembers([]string{"a", "m", "z"}))
	require.Eventually(t, func() bool { return len(rec.descriptions("a", webrtc.SDPTypeOffer)) == 1 }, waitFor, tick)
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-from-a"}
	require.NoError(t, o.HandleSignal("a", envelope(t, Envelope{SDP: &answer})))
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-from-z"}
	require.NoError(t, o.HandleSignal("z", envelope(t, Envelope{SDP: &offer})))
	eventuallyState(t, o, "a", Connected)
	eventuallyState(t, o, "z", Connected)

	require.NoError(t, o.SetTracks(Tracks{}))

	require.Eventually(t, func() bool { return len(rec.descriptions("a", webrtc.SDPTypeOffer)) == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return rec.requests("z") == 1 }, waitFor, tick)
	assert.Empty(t, rec.descriptions("z", webrtc.SDPTypeOffer), "the answering side never offers")
	assert.Zero(t, rec.requests("a"))
	for _, id := range []string{"a", "z"} {
		conn := ff.latest(id)
		conn.mu.Lock()
		assert.Len(t, conn.tracks, 2, id)
		conn.mu.Unlock()
	}
	assert.Equal(t, Connected, o.States()["a"], "renegotiating keeps the link connected")
}

func TestTrackChangeBeforeFirstAnswerWaitsForIt(t *testing.T) {
	ff, rec := newFakeFactory(), &recorder{}
	o := startOrchestrator(t, "a", ff.open, rec)
	require.NoError(t, o.HandleMembers([]string{"a", "b"}))
	eventuallyState(t, o, "b", AwaitingAnswer)

	require.NoError(t, o.SetTracks(Tracks{}))
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-from-b"}
	require.NoError(t, o.HandleSignal("b", envelope(t, Envelope{SDP: &offer})))
	eventuallyState(t, o, "b", Connected)

	// The answer already carries the new tracks.
	assert.Zero(t, rec.requests("b"))
	assert.Zero(t, ff.latest("b").offerCount())
}

func TestRenegotiationRequestsAreCoalesced(t *testing.T) {
	ff, rec := newFakeFactory(), &recorder{}
	o := startOrchestrator(t, "b", ff.open, rec)
	require.NoError(t, o.HandleMembers([]string{"a", "b"}))
	require.Eventually(t, func() bool { return len(rec.descriptions("a", webrtc.SDPTypeOffer)) == 1 }, waitFor, tick)

	// Local and remote changes while the first offer is unanswered.
	require.NoError(t, o.SetTracks(Tracks{}))
	require.NoError(t, o.HandleSignal("a", envelope(t, Envelope{Renegotiate: true})))
	o.States()
	assert.Len(t, rec.descriptions("a", webrtc.SDPTypeOffer), 1, "no second offer while one is pending")

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-from-a"}
	require.NoError(t, o.HandleSignal("a", envelope(t, Envelope{SDP: &answer})))
	require.Eventually(t, func() bool { return len(rec.descriptions("a", webrtc.SDPTypeOffer)) == 2 }, waitFor, tick)

	require.NoError(t, o.HandleSignal("a", envelope(t, Envelope{SDP: &answer})))
	eventuallyState(t, o, "a", Connected)
	assert.Len(t, rec.descriptions("a", webrtc.SDPTypeOffer), 2)
	assert.Equal(t, 2, ff.latest("a").offerCount())
}

func TestRenegotiationRequestOnlyMovesTheOfferingSide(t *testing.T) {
	ff, rec := newFakeFactory(), &recorder{}
	o := startOrchestrator(t, "a", ff.open, rec)

	require.NoError(t, o.HandleSignal("ghost", envelope(t, Envelope{Renegotiate: true})))
	assert.Empty(t, o.States())
	assert.Zero(t, ff.count())

	require.NoError(t, o.HandleMembers([]string{"a", "b"}))
	eventuallyState(t, o, "b", AwaitingAnswer)
	require.NoError(t, o.HandleSignal("b", envelope(t, Envelope{Renegotiate: true})))
	o.States()
	assert.Empty(t, rec.descriptions("b", webrtc.SDPTypeOffer))
	assert.Equal(t, AwaitingAnswer, o.States()["b"])
}

func TestResetClosesLinksAndAdoptsIdentity(t *testing.T) {
	ff, rec := newFakeFactory(), &recorder{}
	o := startOrchestrator(t, "a", ff.open, rec)
	require.NoError(t, o.HandleMembers([]string{"a", "b"}))
	old := ff.latest("b")

	require.NoError(t, o.Reset("z"))
	require.Eventually(t, old.isClosed, waitFor, tick)
	assert.Empty(t, o.States())

	// With the new identity the tie-break flips.
	require.NoError(t, o.HandleMembers([]string{"b", "z"}))
	require.Eventually(t, func() bool { return len(rec.descriptions("b", webrtc.SDPTypeOffer)) == 1 }, waitFor, tick)
	assert.NotSame(t, old, ff.latest("b"))
}

func TestHangupClosesEveryConnection(t *testing.T) {
	ff := newFakeFactory()
	o := startOrchestrator(t, "m", ff.open, &recorder{})
	require.NoError(t, o.HandleMembers([]string{"a", "m", "z"}))

	o.Hangup()

	assert.True(t, ff.latest("a").isClosed())
	assert.True(t, ff.latest("z").isClosed())
	assert.Empty(t, o.States())
}

func TestStoppedOrchestratorRejectsWork(t *testing.T) {
	o := New(newFakeFactory().open, &recorder{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { o.Run(ctx); close(done) }()
	cancel()
	<-done

	assert.ErrorIs(t, o.HandleMembers([]string{"x"}), ErrStopped)
	_, open := <-o.Events()
	assert.False(t, open)
	o.Hangup()
}

func TestTwoParticipantsConnectThroughRelay(t *testing.T) {
	relay := &fakeRelay{peers: make(map[string]*Orchestrator)}
	fa, fb := newFakeFactory(), newFakeFactory()

	a := startOrchestrator(t, "id-a", fa.open, relayPort{relay, "id-a"})
	b := startOrchestrator(t, "id-b", fb.open, relayPort{relay, "id-b"})
	relay.mu.Lock()
	relay.peers["id-a"], relay.peers["id-b"] = a, b
	relay.mu.Unlock()

	// Both receive the same member list from the room.
	members := []string{"id-a", "id-b"}
	require.NoError(t, a.HandleMembers(members))
	require.NoError(t, b.HandleMembers(members))

	eventuallyState(t, a, "id-b", Connected)
	eventuallyState(t, b, "id-a", Connected)

	assert.Zero(t, fa.latest("id-b").offerCount(), "only the greater identity offers")
	assert.Equal(t, 1, fb.latest("id-a").offerCount())

	// Both sides change media at once. No offers collide.
	var wg sync.WaitGroup
	for _, o := range []*Orchestrator{a, b} {
		wg.Add(1)
		go func(o *Orchestrator) {
			defer wg.Done()
			assert.NoError(t, o.SetTracks(Tracks{}))
		}(o)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return fb.latest("id-a").offerCount() == 3 }, waitFor, tick)
	eventuallyState(t, a, "id-b", Connected)
	eventuallyState(t, b, "id-a", Connected)
	assert.Zero(t, fa.latest("id-b").offerCount())
	assert.Equal(t, 1, fa.count())
	assert.Equal(t, 1, fb.count())
}
