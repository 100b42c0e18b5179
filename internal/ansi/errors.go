package ansi

import "errors"

// ErrInvalidColor is returned when a color id cannot be parsed.
var ErrInvalidColor = errors.New("invalid color")
