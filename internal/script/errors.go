package script

import "errors"

// Errors for store operations.
var (
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("script store is closed")

	// ErrScript wraps errors raised by Lua code.
	ErrScript = errors.New("script error")
)
