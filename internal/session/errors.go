package session

import "errors"

// Errors returned by session operations.
var (
	// ErrClosed indicates the session has been closed.
	ErrClosed = errors.New("session closed")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrDial indicates the server could not be reached.
	ErrDial = errors.New("dial failed")
)
