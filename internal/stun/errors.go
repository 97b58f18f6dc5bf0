package stun

import "errors"

// Typed errors
var (
	errNotStun       = errors.New("stun: top bits of message type are nonzero")
	errUnknownMethod = errors.New("stun: unrecognized method")
	errBadCookie     = errors.New("stun: bad magic cookie")
	errTruncated     = errors.New("stun: message truncated")
	errMalformed     = errors.New("stun: malformed message")
)
