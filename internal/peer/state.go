package peer

// State of one peer link.
type State int

const (
	// Idle: link created, negotiation not started.
	Idle State = iota
	// OfferSent: local offer sent, remote answer not yet connected.
	OfferSent
	// AwaitingAnswer: responder waiting for the remote offer to answer.
	AwaitingAnswer
	// Connected: ICE reported connected or completed.
	Connected
	// Disconnected: ICE reported disconnected. Terminal.
	Disconnected
	// Failed: ICE failed or negotiation errored. Terminal.
	Failed
	// Closed: closed locally or because the remote left. Terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case OfferSent:
		return "offer-sent"
	case AwaitingAnswer:
		return "awaiting-answer"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Terminal states tear the connection down and remove the link.
func (s State) Terminal() bool {
	return s == Disconnected || s == Failed || s == Closed
}
