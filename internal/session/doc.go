// Package session owns one telnet connection to a MUD server.
//
// A Session dials the server, strips telnet framing from everything it
// reads and delivers the result in order on a channel: data chunks and
// option signals interleaved exactly as they occurred on the wire. Lines
// sent to the server are terminated with CRLF and IAC-escaped.
package session
