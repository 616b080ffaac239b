package call

import (
	"errors"
	"fmt"
)

var (
	ErrRoomRejected  = errors.New("room rejected by server")
	ErrTransportLost = errors.New("signaling connection lost")
	ErrNotConnected  = errors.New("not connected to the signaling server")
)

// Error is a failed call step.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
