package telnet

import "errors"

// ErrSubnegotiationTooLong is logged when a subnegotiation exceeds the
// buffer limit; the sequence is discarded.
var ErrSubnegotiationTooLong = errors.New("subnegotiation too long")
