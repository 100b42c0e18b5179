package stream

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/transform"

	"github.com/dshills/mudstream/internal/ansi"
	"github.com/dshills/mudstream/internal/logging"
	"github.com/dshills/mudstream/internal/render"
)

// TagHandler interprets markup tags found in the stream.
type TagHandler interface {
	// HandleTag processes one complete tag and reports whether a bound
	// variable changed. It may call Decoder.Inject.
	HandleTag(tag string) bool

	// OnNewline is called at every line boundary.
	OnNewline()

	// NeedsBody reports whether an opening tag of the named element is only
	// meaningful together with its body and closer.
	NeedsBody(name string) bool
}

// VariableNotifier is told, once per remote chunk, that bound variables
// changed.
type VariableNotifier interface {
	NotifyVariableChanges()
}

// Decoder turns a chunked byte stream into render.Target calls.
type Decoder struct {
	target   render.Target
	colors   *ansi.Model
	tags     TagHandler
	notifier VariableNotifier
	log      *logging.Logger

	utf8    bool
	markup  bool
	utf8Dec transform.Transformer

	// partial is the unconsumed tail of a sequence waiting for more bytes;
	// utf8Tail holds the bytes of an incomplete multi-byte character.
	partial  string
	utf8Tail []byte

	queuedText         []string
	queuedPreformatted []string

	cursorLine   int
	cursorColumn int

	depth int
}

// New creates a decoder writing to target. UTF-8 mode is on and markup
// mode is off.
func New(target render.Target, log *logging.Logger) *Decoder {
	if log == nil {
		log = logging.Null
	}
	log = log.WithComponent("stream")
	return &Decoder{
		target:  target,
		colors:  ansi.NewModel(target, log),
		log:     log,
		utf8:    true,
		utf8Dec: newUTF8Decoder(),
	}
}

// Colors returns the decoder's SGR color model.
func (d *Decoder) Colors() *ansi.Model {
	return d.colors
}

// SetTagHandler sets the markup interpreter.
func (d *Decoder) SetTagHandler(h TagHandler) {
	d.tags = h
}

// SetVariableNotifier sets the listener for coalesced variable changes.
func (d *Decoder) SetVariableNotifier(n VariableNotifier) {
	d.notifier = n
}

// SetMarkup turns markup mode on or off. Outside markup mode '<' and '&'
// are plain characters.
func (d *Decoder) SetMarkup(on bool) {
	d.markup = on
}

// Markup reports whether markup mode is on.
func (d *Decoder) Markup() bool {
	return d.markup
}

// SetUTF8 selects UTF-8 (true) or Latin-1 (false) decoding.
func (d *Decoder) SetUTF8(on bool) {
	if on != d.utf8 {
		d.utf8Tail = nil
	}
	d.utf8 = on
}

// Pending reports whether an incomplete sequence is buffered.
func (d *Decoder) Pending() bool {
	return d.partial != "" || len(d.utf8Tail) > 0
}

// Reset discards all buffered state and resets colors.
func (d *Decoder) Reset() {
	d.partial = ""
	d.utf8Tail = nil
	d.queuedText = nil
	d.queuedPreformatted = nil
	d.cursorLine = 0
	d.cursorColumn = 0
	d.utf8Dec.Reset()
	d.colors.Reset()
}

// WriteText writes locally produced text, such as a command echo. While a
// sequence is incomplete the text is queued until the next line boundary.
func (d *Decoder) WriteText(s string) {
	if d.partial != "" {
		d.queuedText = append(d.queuedText, s)
		return
	}
	d.target.Append(s, false)
}

// AppendPreformatted writes local text that ignores the current colors,
// queued like WriteText.
func (d *Decoder) AppendPreformatted(s string) {
	if d.partial != "" {
		d.queuedPreformatted = append(d.queuedPreformatted, s)
		return
	}
	d.target.Append(s, true)
}

// Feed decodes one chunk. remote is false for locally synthesized data.
// It reports whether any bound variable changed.
func (d *Decoder) Feed(chunk []byte, remote bool) bool {
	d.depth++
	defer func() { d.depth-- }()

	rx := d.partial
	d.partial = ""
	rx += d.decode(chunk)
	return d.process(rx, remote)
}

// Inject feeds already decoded text, typically a tag expansion. Called
// from within a TagHandler it nests inside the running Feed.
func (d *Decoder) Inject(text string) bool {
	d.depth++
	defer func() { d.depth-- }()

	if d.depth == 1 {
		text = d.partial + text
		d.partial = ""
	}
	return d.process(text, false)
}

func (d *Decoder) process(rx string, remote bool) bool {
	changed := false
	output := ""

	for i := 0; i < len(rx); {
		c := rx[i]

		if c == '\r' {
			i++
			continue
		}

		if c == '\n' {
			output += "\n"
			i++
			d.emit(output)
			output = ""
			d.newLine()
			continue
		}

		if !special(c, d.markup) {
			j := i + 1
			for j < len(rx) && !special(rx[j], d.markup) {
				j++
			}
			output += rx[i:j]
			i = j
			continue
		}

		sub := rx[i:]
		n, res := d.sequence(sub, &output, &changed)
		if res == matched {
			i += n
			continue
		}

		if res == noMatch {
			if bound := recoveryBound(sub); bound >= 0 {
				bad := sub[:bound+1]
				d.log.Debug("malformed sequence %q", bad)
				d.emit(output + bad)
				output = ""
				i += len(bad)
				continue
			}
		}

		// Incomplete: keep the remainder for the next chunk. Nested calls
		// carry complete synthesized text, so there is nothing to wait for.
		if d.depth > 1 {
			output += sub
			break
		}
		d.partial = output + sub
		break
	}

	if d.partial == "" {
		d.emit(output)
	}

	if remote && changed && d.notifier != nil {
		d.notifier.NotifyVariableChanges()
	}

	if d.depth <= 1 && d.partial == "" && output != "" && !strings.Contains(output, "\n") {
		d.target.OutputComplete()
	}

	return changed
}

// recoveryBound returns the index of the last byte of malformed text at the
// start of s: just before the next escape or newline, whichever comes
// first, or -1 when neither follows.
func recoveryBound(s string) int {
	bound := -1
	if e := strings.IndexByte(s[1:], esc); e >= 0 {
		bound = e
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if bound < 0 || nl-1 < bound {
			bound = nl - 1
		}
	}
	return bound
}

type result int

const (
	noMatch result = iota
	matched
	incomplete
)

// sequence recognizes the sequence at the start of s. It returns the number
// of bytes consumed when matched.
func (d *Decoder) sequence(s string, output *string, changed *bool) (int, result) {
	flush := func() {
		d.emit(*output)
		*output = ""
	}

	if d.markup {
		if m := reEntity.FindStringSubmatch(s); m != nil {
			if v, ok := entities[m[1]]; ok {
				*output += v
			} else {
				*output += m[0]
			}
			flush()
			return len(m[0]), matched
		}
	}

	if m := reReset.FindString(s); m != "" {
		flush()
		d.colors.ApplyCodes([]int{0})
		return len(m), matched
	}

	if m := reSGR.FindStringSubmatch(s); m != nil {
		flush()
		d.colors.ApplyCodes(ansi.ParseParams(m[1]))
		return len(m[0]), matched
	}

	if m := reTagEscape.FindStringSubmatch(s); m != nil {
		flush()
		*changed = d.dispatch(m[1]) || *changed
		return len(m[0]), matched
	}

	if m := reLineMode.FindString(s); m != "" {
		if len(s) == len(m) && d.depth <= 1 {
			return 0, incomplete
		}
		if len(s) == len(m) || s[len(m)] != '<' {
			return len(m), matched
		}
	}

	if d.markup {
		if n := matchBalanced(s); n > 0 {
			flush()
			*changed = d.dispatch(s[:n]) || *changed
			return n, matched
		}

		if m := reDeclaration.FindString(s); m != "" {
			flush()
			*changed = d.dispatch(m) || *changed
			return len(m), matched
		}
	}

	if m := reCursor.FindStringSubmatch(s); m != nil {
		d.moveCursor(m[1], m[2], output)
		return len(m[0]), matched
	}

	if m := reCSI.FindString(s); m != "" {
		d.log.Debug("unsupported CSI sequence %q", m)
		return len(m), matched
	}

	if d.markup {
		if m := reLoneTag.FindStringSubmatch(s); m != nil {
			// An element that expands with its body waits for the closer
			// unless the line ends first.
			if m[1] == "" && d.depth <= 1 && d.tags != nil && d.tags.NeedsBody(m[2]) &&
				!strings.Contains(s, "\n") {
				return 0, incomplete
			}
			flush()
			*changed = d.dispatch(m[0]) || *changed
			return len(m[0]), matched
		}
	}

	return 0, noMatch
}

// moveCursor approximates absolute positioning with newlines and padding.
func (d *Decoder) moveCursor(rowStr, colStr string, output *string) {
	row, _ := strconv.Atoi(rowStr)
	col, _ := strconv.Atoi(colStr)

	if row != d.cursorLine {
		*output += "\n"
		d.cursorLine = row
		d.cursorColumn = 0
		d.emit(*output)
		*output = ""
	}
	if col > d.cursorColumn {
		pad := max(col-runewidth.StringWidth(*output), 0)
		*output += strings.Repeat(" ", pad)
		d.cursorColumn = col
	}
}

// dispatch hands a tag to the handler. A panicking handler is logged and
// the tag is shown as text.
func (d *Decoder) dispatch(tag string) (changed bool) {
	if d.tags == nil {
		d.emit(tag)
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("tag handler panic on %q: %v", tag, r)
			d.emit(tag)
			changed = false
		}
	}()
	return d.tags.HandleTag(tag)
}

func (d *Decoder) emit(s string) {
	if s != "" {
		d.target.AddText(s)
	}
}

func (d *Decoder) newLine() {
	if d.tags != nil {
		d.tags.OnNewline()
	}
	d.target.NewLineReceived()

	if len(d.queuedText) > 0 && d.partial == "" {
		for _, s := range d.queuedText {
			d.target.Append(s, false)
		}
		d.queuedText = nil
	}
	if len(d.queuedPreformatted) > 0 {
		for _, s := range d.queuedPreformatted {
			d.target.Append(s, true)
		}
		d.queuedPreformatted = nil
	}
}
