package telnet

import "strconv"

// Telnet commands (RFC 854).
const (
	SE   byte = 240
	NOP  byte = 241
	GA   byte = 249
	SB   byte = 250
	WILL byte = 251
	WONT byte = 252
	DO   byte = 253
	DONT byte = 254
	IAC  byte = 255
)

// Telnet options handled by the client.
const (
	OptEcho  byte = 1
	OptSGA   byte = 3
	OptTType byte = 24
	OptNAWS  byte = 31
	OptMXP   byte = 91
)

// TTYPE subnegotiation verbs.
const (
	ttypeIS   byte = 0
	ttypeSend byte = 1
)

var commandNames = map[byte]string{
	SE: "SE", NOP: "NOP", GA: "GA", SB: "SB",
	WILL: "WILL", WONT: "WONT", DO: "DO", DONT: "DONT", IAC: "IAC",
}

var optionNames = map[byte]string{
	OptEcho: "ECHO", OptSGA: "SGA", OptTType: "TTYPE", OptNAWS: "NAWS", OptMXP: "MXP",
}

// CommandName returns the mnemonic of a command byte.
func CommandName(c byte) string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return strconv.Itoa(int(c))
}

// OptionName returns the mnemonic of an option byte.
func OptionName(o byte) string {
	if n, ok := optionNames[o]; ok {
		return n
	}
	return strconv.Itoa(int(o))
}

// Escape doubles every IAC byte in data so it can be sent as plain data.
func Escape(data []byte) []byte {
	n := 0
	for _, b := range data {
		if b == IAC {
			n++
		}
	}
	if n == 0 {
		return data
	}
	out := make([]byte, 0, len(data)+n)
	for _, b := range data {
		out = append(out, b)
		if b == IAC {
			out = append(out, IAC)
		}
	}
	return out
}
