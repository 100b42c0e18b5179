package ansi

import (
	"strconv"

	"github.com/dshills/mudstream/internal/logging"
)

// Sink receives color and attribute changes as they are resolved.
// An empty color id means "no override, use the default".
type Sink interface {
	SetFgColorID(id string)
	SetBgColorID(id string)
	SetUnderline(on bool)
	SetBlink(on bool)
}

// Change describes the color overrides computed by one ApplyCodes call.
// FgSet/BgSet report whether that side changed at all; a nil color with the
// flag set means the override was cleared.
type Change struct {
	Fg    *Color
	Bg    *Color
	FgSet bool
	BgSet bool
}

// Model holds the current SGR state of a stream and pushes changes to a Sink.
type Model struct {
	sink Sink
	log  *logging.Logger

	fg *Color
	bg *Color

	// Pushed override ids. Numeric for xterm-256 colors.
	fgID string
	bgID string

	defaultFg Color
	defaultBg Color

	bold      bool
	underline bool
	blink     bool
	reverse   bool
}

// DefaultForeground and DefaultBackground are used until configured otherwise.
var (
	DefaultForeground = Color{Name: Green, Intensity: Low}
	DefaultBackground = Color{Name: Black, Intensity: Low}
)

// NewModel creates a color model pushing to sink.
func NewModel(sink Sink, log *logging.Logger) *Model {
	if log == nil {
		log = logging.Null
	}
	if sink == nil {
		sink = nopSink{}
	}
	return &Model{
		sink:      sink,
		log:       log,
		defaultFg: DefaultForeground,
		defaultBg: DefaultBackground,
	}
}

// SetDefaults changes the default colors. When reverse video is active the
// swapped sides depend on the defaults, so both are re-pushed.
func (m *Model) SetDefaults(fg, bg Color) {
	m.defaultFg = fg
	m.defaultBg = bg
	if m.reverse {
		m.pushFg()
		m.pushBg()
	}
}

// Defaults returns the configured default colors.
func (m *Model) Defaults() (fg, bg Color) {
	return m.defaultFg, m.defaultBg
}

// Bold reports whether bold is active.
func (m *Model) Bold() bool { return m.bold }

// Underline reports whether underline is active.
func (m *Model) Underline() bool { return m.underline }

// Blink reports whether blink is active.
func (m *Model) Blink() bool { return m.blink }

// Reverse reports whether reverse video is active.
func (m *Model) Reverse() bool { return m.reverse }

// Foreground returns the explicit foreground override, if any.
func (m *Model) Foreground() (Color, bool) {
	if m.fg == nil {
		return Color{}, false
	}
	return *m.fg, true
}

// Background returns the explicit background override, if any.
func (m *Model) Background() (Color, bool) {
	if m.bg == nil {
		return Color{}, false
	}
	return *m.bg, true
}

// Resolved returns the foreground and background ids as they are rendered:
// override or default, then swapped when reverse video is on.
func (m *Model) Resolved() (fgID, bgID string) {
	fgID = m.fgID
	if fgID == "" {
		fgID = m.defaultFg.ID()
	}
	bgID = m.bgID
	if bgID == "" {
		bgID = m.defaultBg.ID()
	}
	if m.reverse {
		return bgID, fgID
	}
	return fgID, bgID
}

// Reset clears all state without pushing anything to the sink.
func (m *Model) Reset() {
	m.fg, m.bg = nil, nil
	m.fgID, m.bgID = "", ""
	m.bold, m.underline, m.blink, m.reverse = false, false, false, false
}

// ApplyCodes applies a list of SGR parameters, left to right.
func (m *Model) ApplyCodes(codes []int) Change {
	// A leading 38;5;N or 48;5;N triple selects an xterm-256 color and
	// nothing else in the list is considered.
	if len(codes) == 3 && codes[1] == 5 {
		switch codes[0] {
		case 38:
			m.setXterm(codes[2], false)
			return Change{FgSet: true}
		case 48:
			m.setXterm(codes[2], true)
			return Change{BgSet: true}
		}
	}

	var ch Change
	reset := false
	for _, code := range codes {
		switch {
		case code == 0:
			reset = true
			ch.Fg, ch.FgSet = nil, true
			ch.Bg, ch.BgSet = nil, true
			m.reverse = false
			m.bold = false
			m.underline = false
			m.blink = false
			m.sink.SetBlink(false)
			m.sink.SetUnderline(false)

		case code == 1:
			m.bold = true
			// An xterm color has no intensity to raise.
			if ch.Fg != nil || reset || m.fg != nil || m.fgID == "" {
				c := m.baseFg(ch, reset)
				c.Intensity = High
				ch.Fg, ch.FgSet = &c, true
			}

		case code == 7:
			m.reverse = !m.reverse
			m.pushFg()
			m.pushBg()

		case code >= 30 && code <= 37:
			c := m.defaultFg
			if ch.Fg != nil {
				c = *ch.Fg
			}
			c.Name = fgLookup[code]
			if m.bold {
				c.Intensity = High
			}
			ch.Fg, ch.FgSet = &c, true

		case code >= 40 && code <= 47:
			c := m.defaultBg
			if ch.Bg != nil {
				c = *ch.Bg
			}
			c.Name = bgLookup[code]
			ch.Bg, ch.BgSet = &c, true

		case code == 39:
			ch.Fg, ch.FgSet = nil, true

		case code == 22:
			m.bold = false
			c := m.baseFg(ch, reset)
			c.Intensity = Low
			ch.Fg, ch.FgSet = &c, true

		case code == 4:
			m.underline = true
			m.sink.SetUnderline(true)

		case code == 5:
			m.blink = true
			m.sink.SetBlink(true)

		default:
			m.log.Debug("unsupported SGR code %d", code)
		}
	}

	if ch.FgSet {
		m.setFg(ch.Fg)
	}
	if ch.BgSet {
		m.setBg(ch.Bg)
	}
	return ch
}

// baseFg returns a copy of the color to modify for intensity changes:
// the color computed earlier in this call, else the override (unless a reset
// preceded it in the same call), else the default.
func (m *Model) baseFg(ch Change, reset bool) Color {
	switch {
	case ch.Fg != nil:
		return *ch.Fg
	case !reset && m.fg != nil:
		return *m.fg
	default:
		return m.defaultFg
	}
}

func (m *Model) setXterm(index int, background bool) {
	id := strconv.Itoa(index)
	if background {
		m.bg = nil
		m.bgID = id
		m.pushBg()
		return
	}
	m.fg = nil
	m.fgID = id
	m.pushFg()
}

func (m *Model) setFg(c *Color) {
	m.fg = c
	if c != nil {
		m.fgID = c.ID()
	} else {
		m.fgID = ""
	}
	m.pushFg()
}

func (m *Model) setBg(c *Color) {
	m.bg = c
	if c != nil {
		m.bgID = c.ID()
	} else {
		m.bgID = ""
	}
	m.pushBg()
}

func (m *Model) pushFg() {
	if m.reverse {
		id := m.fgID
		if id == "" {
			id = m.defaultFg.ID()
		}
		m.sink.SetBgColorID(id)
		return
	}
	m.sink.SetFgColorID(m.fgID)
}

func (m *Model) pushBg() {
	if !m.reverse {
		m.sink.SetBgColorID(m.bgID)
		return
	}
	id := m.bgID
	if id == "" {
		id = m.defaultBg.ID()
	}
	m.sink.SetFgColorID(id)
}

type nopSink struct{}

func (nopSink) SetFgColorID(string) {}
func (nopSink) SetBgColorID(string) {}
func (nopSink) SetUnderline(bool) {}
func (nopSink) SetBlink(bool) {}
