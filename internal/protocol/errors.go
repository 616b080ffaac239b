package protocol

import "errors"

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrBadPayload  = errors.New("malformed payload")
)
