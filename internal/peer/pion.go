package peer

import (
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpmeet/internal/config"
)

// Configuration builds the ICE configuration from client settings.
func Configuration(cfg *config.Client) webrtc.Configuration {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}
	if turnServers := cfg.GetTURNServers(); turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}
	policy := webrtc.ICETransportPolicyAll
	if cfg.ForceRelay && cfg.GetTURNServers() != nil {
		policy = webrtc.ICETransportPolicyRelay
	}
	return webrtc.Configuration{ICEServers: iceServers, ICETransportPolicy: policy}
}

// NewPionFactory returns a Factory producing pion peer connections.
func NewPionFactory(conf webrtc.Configuration) Factory {
	return func(string) (Conn, error) {
		c, err := NewPionConn(conf)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// PionConn adapts a pion PeerConnection to Conn. It always negotiates one
// audio and one video transceiver so media can be switched on later
// without adding m-lines. A source that is off is stood in for by an idle
// track that never writes, since pion cannot answer with a nil sender track.
type PionConn struct {
	pc    *webrtc.PeerConnection
	audio *webrtc.RTPSender
	video *webrtc.RTPSender

	idleAudio webrtc.TrackLocal
	idleVideo webrtc.TrackLocal
}

func NewPionConn(conf webrtc.Configuration) (*PionConn, error) {
	idleAudio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"idle-audio", "warpmeet")
	if err != nil {
		return nil, err
	}
	idleVideo, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"idle-video", "warpmeet")
	if err != nil {
		return nil, err
	}

	pc, err := webrtc.NewPeerConnection(conf)
	if err != nil {
		return nil, err
	}

	c := &PionConn{pc: pc, idleAudio: idleAudio, idleVideo: idleVideo}
	for _, track := range []webrtc.TrackLocal{idleAudio, idleVideo} {
		tr, err := pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendrecv,
		})
		if err != nil {
			pc.Close()
			return nil, err
		}
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			c.audio = tr.Sender()
		} else {
			c.video = tr.Sender()
		}
		go drainRTCP(tr.Sender())
	}
	return c, nil
}

// drainRTCP reads incoming RTCP so interceptors keep working.
func drainRTCP(s *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := s.Read(buf); err != nil {
			return
		}
	}
}

func (c *PionConn) ReplaceTracks(t Tracks) error {
	if err := replace(c.audio, t.Audio, c.idleAudio); err != nil {
		return err
	}
	return replace(c.video, t.Video, c.idleVideo)
}

func replace(s *webrtc.RTPSender, track, idle webrtc.TrackLocal) error {
	if track == nil {
		track = idle
	}
	if s.Track() == track {
		return nil
	}
	return s.ReplaceTrack(track)
}

// SignalingState reports where the connection is in the offer/answer exchange.
func (c *PionConn) SignalingState() webrtc.SignalingState {
	return c.pc.SignalingState()
}

// CreateOffer creates an offer with trickle ICE (doesn't wait for gathering)
func (c *PionConn) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (c *PionConn) CreateAnswer() (webrtc.SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (c *PionConn) SetRemoteDescription(sd webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(sd)
}

func (c *PionConn) AddICECandidate(ic webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ic)
}

func (c *PionConn) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(ic *webrtc.ICECandidate) {
		// nil marks the end of gathering
		if ic == nil {
			return
		}
		f(ic.ToJSON())
	})
}

func (c *PionConn) OnStateChange(f func(webrtc.ICEConnectionState)) {
	c.pc.OnICEConnectionStateChange(f)
}

func (c *PionConn) OnRemoteTrack(f func(TrackInfo)) {
	c.pc.OnTrack(func(t *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		f(TrackInfo{ID: t.ID(), Kind: t.Kind().String()})
		// Terminal clients do not render remote media; keep the buffers moving.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := t.Read(buf); err != nil {
					return
				}
			}
		}()
	})
}

func (c *PionConn) Close() error {
	return c.pc.Close()
}
