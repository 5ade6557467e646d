package transport

import "errors"

// Error kinds. Every error returned by this package and by the protocol
// roles built on it wraps exactly one of these, so callers can branch with
// errors.Is.
var (
	ErrInvalidPort = errors.New("invalid port")
	ErrConnection  = errors.New("connection error")
	ErrProtocol    = errors.New("protocol error")
	ErrIO          = errors.New("io error")
	ErrApplication = errors.New("application error")
)

// StatusError is a terminal status string sent by the responder in place
// of DATA.
type StatusError struct {
	Status string
}

func (e *StatusError) Error() string {
	return "server replied: " + e.Status
}

func (e *StatusError) Is(target error) bool {
	return target == ErrApplication
}
