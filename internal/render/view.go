package render

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/dshills/mudstream/internal/ansi"
)

const inputPrompt = "> "

// cell is one laid-out screen cell of output.
type cell struct {
	r     rune
	width int
	style tcell.Style
	elem  Element
}

// menu is an open choice pop-up for a multi-command send link.
type menu struct {
	send     *Send
	choices  []Choice
	x, y     int
	width    int
	selected int
}

// View draws a Buffer onto a tcell screen: the output tail, a status line
// and an input line at the bottom, plus an optional choice pop-up.
type View struct {
	mu sync.Mutex

	screen tcell.Screen
	buf    *Buffer

	input  []rune
	cursor int
	status string
	scroll int

	menu *menu

	// hits maps screen rows of the output area to the element under each
	// column, rebuilt on every Draw.
	hits [][]Element

	onLink func(href string)
}

// NewView creates a view of buf on screen.
func NewView(screen tcell.Screen, buf *Buffer) *View {
	return &View{screen: screen, buf: buf}
}

// OnLink sets the callback for activated hyperlinks.
func (v *View) OnLink(fn func(href string)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onLink = fn
}

// SetStatus sets the status line text.
func (v *View) SetStatus(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = s
}

// Input returns the current input line.
func (v *View) Input() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return string(v.input)
}

// SetInput replaces the input line and moves the cursor to its end.
func (v *View) SetInput(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.input = []rune(s)
	v.cursor = len(v.input)
}

// Scroll moves the output window by delta rows; positive scrolls back.
func (v *View) Scroll(delta int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scroll += delta
	if v.scroll < 0 {
		v.scroll = 0
	}
}

// MenuOpen reports whether a choice pop-up is showing.
func (v *View) MenuOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.menu != nil
}

// HandleKey applies a key event. It returns the submitted line and true
// when Enter was pressed on the input line.
func (v *View) HandleKey(ev *tcell.EventKey) (string, bool) {
	v.mu.Lock()

	if v.menu != nil {
		m := v.menu
		switch ev.Key() {
		case tcell.KeyEscape:
			v.menu = nil
		case tcell.KeyUp:
			if m.selected > 0 {
				m.selected--
			}
		case tcell.KeyDown:
			if m.selected < len(m.choices)-1 {
				m.selected++
			}
		case tcell.KeyEnter:
			v.menu = nil
			v.mu.Unlock()
			m.send.Activate(m.selected)
			return "", false
		}
		v.mu.Unlock()
		return "", false
	}

	defer v.mu.Unlock()
	switch ev.Key() {
	case tcell.KeyRune:
		v.input = append(v.input[:v.cursor], append([]rune{ev.Rune()}, v.input[v.cursor:]...)...)
		v.cursor++
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if v.cursor > 0 {
			v.input = append(v.input[:v.cursor-1], v.input[v.cursor:]...)
			v.cursor--
		}
	case tcell.KeyDelete:
		if v.cursor < len(v.input) {
			v.input = append(v.input[:v.cursor], v.input[v.cursor+1:]...)
		}
	case tcell.KeyLeft:
		if v.cursor > 0 {
			v.cursor--
		}
	case tcell.KeyRight:
		if v.cursor < len(v.input) {
			v.cursor++
		}
	case tcell.KeyHome, tcell.KeyCtrlA:
		v.cursor = 0
	case tcell.KeyEnd, tcell.KeyCtrlE:
		v.cursor = len(v.input)
	case tcell.KeyPgUp:
		_, h := v.screen.Size()
		v.scroll += max(h-2, 1)
	case tcell.KeyPgDn:
		_, h := v.screen.Size()
		v.scroll = max(v.scroll-max(h-2, 1), 0)
	case tcell.KeyEnter:
		line := string(v.input)
		v.input = v.input[:0]
		v.cursor = 0
		v.scroll = 0
		return line, true
	}
	return "", false
}

// HandleMouse applies a mouse event. Only primary-button presses act.
func (v *View) HandleMouse(ev *tcell.EventMouse) {
	if ev.Buttons()&tcell.Button1 == 0 {
		return
	}
	x, y := ev.Position()
	v.Click(x, y)
}

// Click activates whatever is drawn at (x, y). It returns true when an
// element or menu entry was hit.
func (v *View) Click(x, y int) bool {
	v.mu.Lock()

	if m := v.menu; m != nil {
		v.menu = nil
		i := y - m.y - 1
		if x >= m.x && x < m.x+m.width && i >= 0 && i < len(m.choices) {
			v.mu.Unlock()
			return m.send.Activate(i)
		}
		v.mu.Unlock()
		return false
	}

	if y < 0 || y >= len(v.hits) || x < 0 || x >= len(v.hits[y]) {
		v.mu.Unlock()
		return false
	}
	elem := v.hits[y][x]
	onLink := v.onLink

	switch e := elem.(type) {
	case *Send:
		if e.NeedsMenu() {
			v.menu = newMenu(e, x, y)
			v.mu.Unlock()
			return true
		}
		v.mu.Unlock()
		return e.Activate(0)
	case *Link:
		v.mu.Unlock()
		if onLink != nil {
			onLink(e.Href)
		}
		return true
	}
	v.mu.Unlock()
	return false
}

func newMenu(s *Send, x, y int) *menu {
	m := &menu{send: s, choices: s.Choices(), x: x, y: y}
	for _, c := range m.choices {
		m.width = max(m.width, runewidth.StringWidth(c.Label)+2)
	}
	return m
}

// Draw renders the view and shows the screen.
func (v *View) Draw() {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.screen
	w, h := s.Size()
	s.Clear()
	if w <= 0 || h <= 0 {
		return
	}

	area := max(h-2, 0)
	defFg, defBg := v.buf.DefaultColors()
	rows := v.tail(area, w, defFg, defBg)

	v.hits = make([][]Element, area)
	top := area - len(rows)
	for i, row := range rows {
		y := top + i
		v.hits[y] = make([]Element, w)
		x := 0
		for _, c := range row {
			s.SetContent(x, y, c.r, nil, c.style)
			for k := 0; k < c.width && x+k < w; k++ {
				v.hits[y][x+k] = c.elem
			}
			x += c.width
		}
	}

	if h >= 2 {
		statusStyle := tcell.StyleDefault.Reverse(true)
		for x := 0; x < w; x++ {
			s.SetContent(x, h-2, ' ', nil, statusStyle)
		}
		drawString(s, 0, h-2, w, v.status, statusStyle)
	}

	px := drawString(s, 0, h-1, w, inputPrompt, tcell.StyleDefault.Bold(true))
	drawString(s, px, h-1, w, string(v.input), tcell.StyleDefault)
	cx := px + runewidth.StringWidth(string(v.input[:v.cursor]))
	s.ShowCursor(min(cx, w-1), h-1)

	if v.menu != nil {
		v.drawMenu(w, h)
	}
	s.Show()
}

// tail lays out buffer lines from the bottom up until area rows are
// filled, honoring the scroll offset.
func (v *View) tail(area, width int, defFg, defBg string) [][]cell {
	if area == 0 {
		return nil
	}
	need := area + v.scroll
	var rows [][]cell
	lines := v.buf.Lines(0)
	for i := len(lines) - 1; i >= 0 && len(rows) < need; i-- {
		rows = append(layout(lines[i], width, defFg, defBg), rows...)
	}
	if over := max(len(rows)-area, 0); v.scroll > over {
		v.scroll = over
	}
	end := len(rows) - v.scroll
	start := max(end-area, 0)
	return rows[start:end]
}

// layout wraps a line to width columns. An empty line yields one empty row.
func layout(line Line, width int, defFg, defBg string) [][]cell {
	rows := [][]cell{nil}
	col := 0
	for _, run := range line.Runs {
		style := runStyle(run.Attr, defFg, defBg)
		for _, r := range run.Text {
			rw := runewidth.RuneWidth(r)
			if rw == 0 {
				continue
			}
			if col+rw > width && col > 0 {
				rows = append(rows, nil)
				col = 0
			}
			rows[len(rows)-1] = append(rows[len(rows)-1], cell{r: r, width: rw, style: style, elem: run.Element})
			col += rw
		}
	}
	return rows
}

func runStyle(a Attr, defFg, defBg string) tcell.Style {
	st := tcell.StyleDefault.
		Foreground(tcellColor(a.Fg, defFg)).
		Background(tcellColor(a.Bg, defBg))
	if a.Bold {
		st = st.Bold(true)
	}
	if a.Italic {
		st = st.Italic(true)
	}
	if a.Underline {
		st = st.Underline(true)
	}
	if a.Strike {
		st = st.StrikeThrough(true)
	}
	if a.Blink {
		st = st.Blink(true)
	}
	return st
}

// tcellColor resolves a color id, falling back to def for the empty id.
func tcellColor(id, def string) tcell.Color {
	if id == "" {
		id = def
	}
	if id == "" {
		return tcell.ColorDefault
	}
	idx, ok := ansi.PaletteIndex(id)
	if !ok {
		return tcell.ColorDefault
	}
	return tcell.PaletteColor(idx)
}

func (v *View) drawMenu(w, h int) {
	m := v.menu
	style := tcell.StyleDefault.Reverse(true)
	y := m.y + 1
	if y+len(m.choices) > h-2 {
		y = max(m.y-len(m.choices), 0)
	}
	m.y = y - 1
	x := min(m.x, max(w-m.width, 0))
	m.x = x
	for i, c := range m.choices {
		st := style
		if i == m.selected {
			st = tcell.StyleDefault.Bold(true)
		}
		for cx := x; cx < x+m.width && cx < w; cx++ {
			v.screen.SetContent(cx, y+i, ' ', nil, st)
		}
		drawString(v.screen, x+1, y+i, w, c.Label, st)
	}
}

// drawString writes s at (x, y) clipped to w columns and returns the next
// free column.
func drawString(s tcell.Screen, x, y, w int, text string, style tcell.Style) int {
	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if rw == 0 {
			continue
		}
		if x+rw > w {
			break
		}
		s.SetContent(x, y, r, nil, style)
		x += rw
	}
	return x
}
