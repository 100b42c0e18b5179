// Package telnet strips telnet framing from a MUD byte stream and answers
// the option negotiation a MUD client needs.
//
// The Reader wraps the raw connection. Reads return only application data;
// IAC commands are consumed, replies are written to the reply writer and
// option state changes (MXP, server echo) are reported through callbacks.
// Framing may be split across reads at any byte.
package telnet
