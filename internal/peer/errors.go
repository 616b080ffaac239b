package peer

import (
	"errors"
	"fmt"
)

var (
	ErrNegotiation = errors.New("negotiation failed")
	ErrBadEnvelope = errors.New("malformed signal envelope")
	ErrStopped     = errors.New("orchestrator stopped")
)

// Error describes a failure on one link.
type Error struct {
	Op   string
	Peer string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s with %s: %v", e.Op, e.Peer, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
