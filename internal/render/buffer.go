package render

import (
	"strings"
	"sync"
)

// Attr is the visual style of a run of text.
type Attr struct {
	Fg        string // color id, "" for default
	Bg        string
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
	Blink     bool
}

// Run is a span of text sharing one style and one clickable element.
type Run struct {
	Text    string
	Attr    Attr
	Element Element // innermost clickable element, or nil
	Local   bool    // produced locally rather than received
}

// Line is one logical output line.
type Line struct {
	Runs   []Run
	Prompt bool
}

// String returns the plain text of the line.
func (l Line) String() string {
	var b strings.Builder
	for _, r := range l.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// BufferOptions configures a Buffer.
type BufferOptions struct {
	// Scrollback is the maximum number of retained lines (default 5000).
	Scrollback int

	// OnLine is called with each completed line.
	OnLine func(line Line)

	// OnUpdate is called when a burst of output completes.
	OnUpdate func()
}

// Buffer is a scrollback Target that keeps styled lines in memory.
type Buffer struct {
	mu sync.RWMutex

	lines      []Line
	scrollback int

	attr      Attr
	defaultFg string
	defaultBg string

	open []Element

	onLine   func(line Line)
	onUpdate func()
}

// NewBuffer creates an empty buffer.
func NewBuffer(opts BufferOptions) *Buffer {
	if opts.Scrollback <= 0 {
		opts.Scrollback = 5000
	}
	return &Buffer{
		lines:      []Line{{}},
		scrollback: opts.Scrollback,
		onLine:     opts.OnLine,
		onUpdate:   opts.OnUpdate,
	}
}

// SetDefaultColors sets the ids used for runs without an explicit color.
func (b *Buffer) SetDefaultColors(fg, bg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defaultFg = fg
	b.defaultBg = bg
}

// DefaultColors returns the default color ids.
func (b *Buffer) DefaultColors() (fg, bg string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.defaultFg, b.defaultBg
}

// AddText implements Target.
func (b *Buffer) AddText(text string) {
	b.write(text, false, false)
}

// Append implements Target.
func (b *Buffer) Append(text string, preformatted bool) {
	b.write(text, true, preformatted)
}

func (b *Buffer) write(text string, local, preformatted bool) {
	if text == "" {
		return
	}

	b.mu.Lock()
	var completed []Line
	attr := b.effectiveAttr()
	if preformatted {
		attr = Attr{}
	}
	elem := b.clickable()

	for {
		i := strings.IndexByte(text, '\n')
		seg := text
		if i >= 0 {
			seg = text[:i]
		}
		if seg != "" {
			for _, e := range b.open {
				e.AppendText(seg)
			}
			b.appendRun(Run{Text: seg, Attr: attr, Element: elem, Local: local})
		}
		if i < 0 {
			break
		}
		completed = append(completed, b.lines[len(b.lines)-1])
		b.newLine()
		text = text[i+1:]
	}
	onLine := b.onLine
	b.mu.Unlock()

	if onLine != nil {
		for _, l := range completed {
			onLine(l)
		}
	}
}

func (b *Buffer) appendRun(r Run) {
	cur := &b.lines[len(b.lines)-1]
	if n := len(cur.Runs); n > 0 {
		last := &cur.Runs[n-1]
		if last.Attr == r.Attr && last.Element == r.Element && last.Local == r.Local {
			last.Text += r.Text
			return
		}
	}
	cur.Runs = append(cur.Runs, r)
}

func (b *Buffer) newLine() {
	b.lines = append(b.lines, Line{})
	if over := len(b.lines) - b.scrollback; over > 0 {
		b.lines = append([]Line(nil), b.lines[over:]...)
	}
}

// effectiveAttr folds open style elements into the current attributes.
func (b *Buffer) effectiveAttr() Attr {
	a := b.attr
	for _, e := range b.open {
		switch el := e.(type) {
		case *Style:
			switch el.Tag {
			case 'b':
				a.Bold = true
			case 'i':
				a.Italic = true
			case 'u':
				a.Underline = true
			case 's':
				a.Strike = true
			}
		case *Link, *Send:
			a.Underline = true
		}
	}
	return a
}

func (b *Buffer) clickable() Element {
	for i := len(b.open) - 1; i >= 0; i-- {
		switch b.open[i].Kind() {
		case KindSend, KindLink:
			return b.open[i]
		}
	}
	return nil
}

// SetFgColorID implements Target.
func (b *Buffer) SetFgColorID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attr.Fg = id
}

// SetBgColorID implements Target.
func (b *Buffer) SetBgColorID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attr.Bg = id
}

// SetBold implements Target.
func (b *Buffer) SetBold(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attr.Bold = on
}

// SetUnderline implements Target.
func (b *Buffer) SetUnderline(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attr.Underline = on
}

// SetBlink implements Target.
func (b *Buffer) SetBlink(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attr.Blink = on
}

// PushElement implements Target. Images are closed immediately by their
// producer, so their placeholder is written on push.
func (b *Buffer) PushElement(e Element) {
	b.mu.Lock()
	b.open = append(b.open, e)
	b.mu.Unlock()

	if img, ok := e.(*Image); ok {
		b.AddText(img.Placeholder())
	}
}

// PopElement implements Target.
func (b *Buffer) PopElement() Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.open) == 0 {
		return nil
	}
	e := b.open[len(b.open)-1]
	b.open = b.open[:len(b.open)-1]
	return e
}

// OpenElements returns the number of currently open elements.
func (b *Buffer) OpenElements() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.open)
}

// NewLineReceived implements Target. Lines are split on '\n' in the text
// itself, so there is nothing to do here.
func (b *Buffer) NewLineReceived() {}

// MarkCurrentLineAsPrompt implements Target.
func (b *Buffer) MarkCurrentLineAsPrompt() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines[len(b.lines)-1].Prompt = true
}

// OutputComplete implements Target.
func (b *Buffer) OutputComplete() {
	b.mu.RLock()
	fn := b.onUpdate
	b.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Lines returns a copy of the last n lines (all lines when n <= 0),
// including the line currently being built.
func (b *Buffer) Lines(n int) []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := 0
	if n > 0 && n < len(b.lines) {
		start = len(b.lines) - n
	}
	out := make([]Line, len(b.lines)-start)
	for i, l := range b.lines[start:] {
		out[i] = Line{Runs: append([]Run(nil), l.Runs...), Prompt: l.Prompt}
	}
	return out
}

// Len returns the number of retained lines.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Text returns the buffer contents as plain text, lines joined by '\n'.
func (b *Buffer) Text() string {
	lines := b.Lines(0)
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.String()
	}
	return strings.Join(parts, "\n")
}

// Clear drops all lines and open elements.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = []Line{{}}
	b.open = nil
	b.attr = Attr{}
}
