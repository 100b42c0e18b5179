// Package rendertest provides a recording render.Target for tests.
package rendertest

import (
	"fmt"
	"strings"

	"github.com/dshills/mudstream/internal/render"
)

// Target records every call made to it.
//
// Calls holds one entry per call, e.g. `text "hi"`, `fg red-high`,
// `push send`, `pop`, `newline`, `prompt`, `complete`.
type Target struct {
	Calls []string

	text     strings.Builder
	open     []render.Element
	Pushed   []render.Element
	Popped   []render.Element
	Prompts  int
	Complete int
	Newlines int

	Fg, Bg                 string
	Bold, Underline, Blink bool
}

// New creates an empty recording target.
func New() *Target {
	return &Target{}
}

// Text returns all text written, remote and local, in order.
func (t *Target) Text() string {
	return t.text.String()
}

// Open returns the elements pushed and not yet popped.
func (t *Target) Open() []render.Element {
	return t.open
}

// Reset clears the recording.
func (t *Target) Reset() {
	*t = Target{}
}

func (t *Target) record(format string, args ...any) {
	t.Calls = append(t.Calls, fmt.Sprintf(format, args...))
}

func (t *Target) AddText(text string) {
	t.text.WriteString(text)
	for _, e := range t.open {
		e.AppendText(text)
	}
	t.record("text %q", text)
}

func (t *Target) Append(text string, preformatted bool) {
	t.text.WriteString(text)
	if preformatted {
		t.record("pre %q", text)
		return
	}
	t.record("local %q", text)
}

func (t *Target) SetFgColorID(id string) {
	t.Fg = id
	t.record("fg %s", id)
}

func (t *Target) SetBgColorID(id string) {
	t.Bg = id
	t.record("bg %s", id)
}

func (t *Target) SetBold(on bool) {
	t.Bold = on
	t.record("bold %t", on)
}

func (t *Target) SetUnderline(on bool) {
	t.Underline = on
	t.record("underline %t", on)
}

func (t *Target) SetBlink(on bool) {
	t.Blink = on
	t.record("blink %t", on)
}

func (t *Target) PushElement(e render.Element) {
	t.open = append(t.open, e)
	t.Pushed = append(t.Pushed, e)
	t.record("push %s", e.Kind())
}

func (t *Target) PopElement() render.Element {
	t.record("pop")
	if len(t.open) == 0 {
		return nil
	}
	e := t.open[len(t.open)-1]
	t.open = t.open[:len(t.open)-1]
	t.Popped = append(t.Popped, e)
	return e
}

func (t *Target) NewLineReceived() {
	t.Newlines++
	t.record("newline")
}

func (t *Target) MarkCurrentLineAsPrompt() {
	t.Prompts++
	t.record("prompt")
}

func (t *Target) OutputComplete() {
	t.Complete++
	t.record("complete")
}

var _ render.Target = (*Target)(nil)
