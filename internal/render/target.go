package render

// Target is the sink the stream decoder writes to.
//
// Color ids are either "name-intensity" (e.g. "red-high") or a numeric
// xterm-256 index; the empty id means "use the default color".
type Target interface {
	// AddText appends remote text in the current style. Embedded '\n'
	// characters end the current line.
	AddText(text string)

	// Append appends locally produced text. Preformatted text bypasses the
	// current color state.
	Append(text string, preformatted bool)

	SetFgColorID(id string)
	SetBgColorID(id string)
	SetBold(on bool)
	SetUnderline(on bool)
	SetBlink(on bool)

	// PushElement opens an inline element; text added until the matching
	// PopElement belongs to it.
	PushElement(e Element)

	// PopElement closes and returns the innermost open element, or nil.
	PopElement() Element

	// NewLineReceived reports that the decoder completed a line.
	NewLineReceived()

	// MarkCurrentLineAsPrompt flags the line being built as a prompt.
	MarkCurrentLineAsPrompt()

	// OutputComplete reports the end of a burst of output.
	OutputComplete()
}
