package relay

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRoom   = errors.New("invalid room")
	ErrUnknownTarget = errors.New("unknown signal target")
	ErrNoActiveRoom  = errors.New("session is not in a room")
	ErrPersistence   = errors.New("chat persistence failed")
)

// Error ties a relay failure to the operation and session it happened in.
type Error struct {
	Op      string
	Session string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (session %s): %v (%s)", e.Op, e.Session, e.Err, e.Details)
	}
	return fmt.Sprintf("%s (session %s): %v", e.Op, e.Session, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, session string, err error, details string) *Error {
	return &Error{Op: op, Session: session, Err: err, Details: details}
}
