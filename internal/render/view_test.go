package render

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func newTestView(t *testing.T, w, h int) (*View, *Buffer, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	t.Cleanup(screen.Fini)
	screen.SetSize(w, h)

	buf := NewBuffer(BufferOptions{})
	return NewView(screen, buf), buf, screen
}

func rowText(s tcell.Screen, y, w int) string {
	var out []rune
	for x := 0; x < w; x++ {
		r, _, _, _ := s.GetContent(x, y) //nolint:staticcheck // GetContent is the correct API
		out = append(out, r)
	}
	return string(out)
}

func TestLayoutWraps(t *testing.T) {
	line := Line{Runs: []Run{{Text: "abcdefghij"}}}
	rows := layout(line, 4, "", "")
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if len(rows[2]) != 2 {
		t.Errorf("expected 2 cells on last row, got %d", len(rows[2]))
	}
}

func TestLayoutWideRunes(t *testing.T) {
	line := Line{Runs: []Run{{Text: "日本"}}}
	rows := layout(line, 3, "", "")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0].width != 2 {
		t.Errorf("expected width 2, got %d", rows[0][0].width)
	}
}

func TestLayoutEmptyLine(t *testing.T) {
	if rows := layout(Line{}, 10, "", ""); len(rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(rows))
	}
}

func TestTcellColor(t *testing.T) {
	tests := []struct {
		id, def string
		want    tcell.Color
	}{
		{"", "", tcell.ColorDefault},
		{"red-low", "", tcell.PaletteColor(1)},
		{"red-high", "", tcell.PaletteColor(9)},
		{"", "green-low", tcell.PaletteColor(2)},
		{"196", "", tcell.PaletteColor(196)},
		{"bogus", "", tcell.ColorDefault},
	}
	for _, tt := range tests {
		if got := tcellColor(tt.id, tt.def); got != tt.want {
			t.Errorf("tcellColor(%q, %q): expected %v, got %v", tt.id, tt.def, tt.want, got)
		}
	}
}

func TestViewDrawsTailAndInput(t *testing.T) {
	v, buf, screen := newTestView(t, 20, 5)
	buf.AddText("first\nsecond\nthird\nfourth")
	v.SetStatus("connected")
	v.SetInput("look")
	v.Draw()

	if got := rowText(screen, 0, 6); got != "second" {
		t.Errorf("expected 'second' on row 0, got %q", got)
	}
	if got := rowText(screen, 2, 6); got != "fourth" {
		t.Errorf("expected 'fourth' on row 2, got %q", got)
	}
	if got := rowText(screen, 3, 9); got != "connected" {
		t.Errorf("expected status line, got %q", got)
	}
	if got := rowText(screen, 4, 6); got != "> look" {
		t.Errorf("expected input line, got %q", got)
	}
}

func TestViewScrollback(t *testing.T) {
	v, buf, screen := newTestView(t, 20, 4)
	buf.AddText("a\nb\nc\nd")
	v.Scroll(2)
	v.Draw()

	if got := rowText(screen, 0, 1); got != "a" {
		t.Errorf("expected 'a' on row 0, got %q", got)
	}
	if got := rowText(screen, 1, 1); got != "b" {
		t.Errorf("expected 'b' on row 1, got %q", got)
	}

	v.Scroll(100)
	v.Draw()
	if got := rowText(screen, 0, 1); got != "a" {
		t.Errorf("expected scroll clamped at 'a', got %q", got)
	}
}

func TestViewClickSend(t *testing.T) {
	v, buf, _ := newTestView(t, 20, 5)
	var sent []string
	s := NewSend([]string{"look"}, nil, false)
	s.SetHandler(func(cmd string, prompt bool) { sent = append(sent, cmd) })

	buf.AddText("hello\n")
	buf.PushElement(s)
	buf.AddText("Look")
	buf.PopElement()
	buf.AddText(" here")
	v.Draw()

	if !v.Click(1, 2) {
		t.Fatal("expected click on send")
	}
	if v.Click(6, 2) {
		t.Error("expected click on plain text to miss")
	}
	if len(sent) != 1 || sent[0] != "look" {
		t.Errorf("expected exactly one 'look', got %v", sent)
	}
}

func TestViewClickMenu(t *testing.T) {
	v, buf, _ := newTestView(t, 20, 8)
	var sent []string
	s := NewSend([]string{"n", "s"}, []string{"North", "South"}, false)
	s.SetHandler(func(cmd string, prompt bool) { sent = append(sent, cmd) })

	buf.PushElement(s)
	buf.AddText("exits")
	buf.PopElement()
	v.Draw()

	y := 5
	if !v.Click(0, y) || !v.MenuOpen() {
		t.Fatal("expected menu to open")
	}
	if len(sent) != 0 {
		t.Fatalf("expected no command before choosing, got %v", sent)
	}
	v.Click(0, y+2)
	if v.MenuOpen() {
		t.Error("expected menu closed")
	}
	if len(sent) != 1 || sent[0] != "s" {
		t.Errorf("expected 's', got %v", sent)
	}
}

func TestViewClickLink(t *testing.T) {
	v, buf, _ := newTestView(t, 20, 3)
	var opened string
	v.OnLink(func(href string) { opened = href })

	buf.PushElement(NewLink("http://example.com"))
	buf.AddText("site")
	buf.PopElement()
	v.Draw()

	v.Click(0, 0)
	if opened != "http://example.com" {
		t.Errorf("expected link opened, got %q", opened)
	}
}

func TestViewHandleKey(t *testing.T) {
	v, _, _ := newTestView(t, 20, 5)
	for _, r := range "lok" {
		v.HandleKey(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
	}
	v.HandleKey(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone))
	v.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'o', tcell.ModNone))

	if v.Input() != "look" {
		t.Errorf("expected 'look', got %q", v.Input())
	}
	line, ok := v.HandleKey(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	if !ok || line != "look" {
		t.Errorf("expected submitted 'look', got %q %v", line, ok)
	}
	if v.Input() != "" {
		t.Errorf("expected cleared input, got %q", v.Input())
	}
}

func TestViewMenuKeys(t *testing.T) {
	v, _, _ := newTestView(t, 20, 5)
	var sent []string
	s := NewSend([]string{"n", "s", "e"}, nil, false)
	s.SetHandler(func(cmd string, prompt bool) { sent = append(sent, cmd) })
	v.menu = newMenu(s, 0, 0)

	v.HandleKey(tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone))
	v.HandleKey(tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone))
	if _, ok := v.HandleKey(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)); ok {
		t.Error("expected menu Enter not to submit input")
	}
	if len(sent) != 1 || sent[0] != "e" {
		t.Errorf("expected 'e', got %v", sent)
	}
}
