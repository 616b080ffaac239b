package peer

import "github.com/pion/webrtc/v4"

// Tracks is the local media set sent on every link. Nil entries send nothing.
type Tracks struct {
	Audio webrtc.TrackLocal
	Video webrtc.TrackLocal
}

// TrackInfo describes a remote track that started arriving.
type TrackInfo struct {
	ID   string
	Kind string
}

// Conn is the connection primitive a link negotiates.
// Callbacks may fire on any goroutine.
type Conn interface {
	// ReplaceTracks swaps the outgoing tracks without touching transceivers.
	ReplaceTracks(Tracks) error

	// CreateOffer and CreateAnswer also apply the result as local description.
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error

	OnICECandidate(func(webrtc.ICECandidateInit))
	OnStateChange(func(webrtc.ICEConnectionState))
	OnRemoteTrack(func(TrackInfo))

	Close() error
}

// Factory opens a new Conn towards remote.
type Factory func(remote string) (Conn, error)

// Signaler delivers an envelope to one remote identity through the relay.
type Signaler interface {
	Signal(target string, env Envelope) error
}
