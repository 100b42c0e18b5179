// Package ansi implements the SGR color model of the stream decoder.
//
// A Model tracks explicit foreground/background overrides, configured
// defaults and the bold, underline, blink and reverse flags. Colors are
// named ("red") at an intensity ("low"/"high") and are reported to the
// renderer as ids of the form "red-high"; xterm-256 colors selected with a
// 38;5;N or 48;5;N triple are reported as their numeric index.
//
// Reverse video is applied at push time: the model always stores the
// logical sides and swaps them when talking to its Sink.
package ansi
