// Package render holds the output side of the client.
//
// Target is the interface the stream decoder writes to. Buffer is the
// in-memory implementation: a bounded scrollback of lines made of styled
// runs, where each run remembers the innermost clickable element that was
// open when it was written. View draws a Buffer onto a tcell screen and
// turns mouse clicks on those runs back into element activations.
//
// Inline elements (Style, Link, Send, Image) are created by the markup
// interpreter and pushed and popped around the text they cover.
package render
