package mxp

import "errors"

// Sentinel errors for directive parsing.
var (
	// ErrMalformedDirective is returned when a <!ELEMENT> or <!ENTITY>
	// directive cannot be parsed.
	ErrMalformedDirective = errors.New("malformed directive")

	// ErrUnknownDirective is returned for a <!...> tag that is neither an
	// element nor an entity declaration.
	ErrUnknownDirective = errors.New("unknown directive")
)
