package peer

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Envelope is the negotiation payload exchanged through the relay.
// Exactly one of SDP, ICE or Renegotiate is set. Renegotiate is sent by the
// answering side of a pair to ask the offering side for a fresh offer.
type Envelope struct {
	SDP         *webrtc.SessionDescription `json:"sdp,omitempty"`
	ICE         *webrtc.ICECandidateInit   `json:"ice,omitempty"`
	Renegotiate bool                       `json:"renegotiate,omitempty"`
}

// ParseEnvelope decodes relay signal data.
func ParseEnvelope(data json.RawMessage) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	set := 0
	for _, ok := range []bool{env.SDP != nil, env.ICE != nil, env.Renegotiate} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return Envelope{}, fmt.Errorf("%w: want exactly one of sdp, ice or renegotiate", ErrBadEnvelope)
	}
	return env, nil
}

// ShouldOffer decides which side of a pair makes the first offer: the side
// whose own identity is greater. For distinct identities exactly one side offers.
func ShouldOffer(local, remote string) bool {
	return local > remote
}
