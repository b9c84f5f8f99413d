package session

import "errors"

// Error kinds from spec.md §7. Each is a distinct sentinel so call sites
// can branch with errors.Is instead of string matching.
var (
	ErrFrameTooLarge      = errors.New("session: frame too large")
	ErrReadError          = errors.New("session: read error")
	ErrPeerClosed         = errors.New("session: peer closed connection")
	ErrTimeout            = errors.New("session: read deadline exceeded")
	ErrHostNotResolved    = errors.New("session: host not resolved")
	ErrServiceNotFound    = errors.New("session: connect failed")
	ErrConnectionCanceled = errors.New("session: connection canceled")
	ErrWriteError         = errors.New("session: write error")
	ErrHandlerPanic       = errors.New("session: handler panic")
	ErrNotRunning         = errors.New("session: service not running")
	ErrAlreadyPresent     = errors.New("session: connection id already registered")
)
