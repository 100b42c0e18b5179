package ansi

import (
	"fmt"
	"strconv"
	"strings"
)

// Name is one of the eight named ANSI colors.
type Name string

// Named ANSI colors, in palette order.
const (
	Black   Name = "black"
	Red     Name = "red"
	Green   Name = "green"
	Yellow  Name = "yellow"
	Blue    Name = "blue"
	Magenta Name = "magenta"
	Cyan    Name = "cyan"
	White   Name = "white"
)

// Names lists the named colors in palette order (index 0-7).
var Names = []Name{Black, Red, Green, Yellow, Blue, Magenta, Cyan, White}

// Intensity selects the normal or bright variant of a named color.
type Intensity string

const (
	Low  Intensity = "low"
	High Intensity = "high"
)

// Color is a named color at a given intensity.
type Color struct {
	Name      Name
	Intensity Intensity
}

// ID returns the renderer color id, e.g. "red-high".
func (c Color) ID() string {
	return string(c.Name) + "-" + string(c.Intensity)
}

// String implements fmt.Stringer.
func (c Color) String() string {
	return c.ID()
}

// Index returns the 16-color palette index of the color.
func (c Color) Index() int {
	idx := 0
	for i, n := range Names {
		if n == c.Name {
			idx = i
			break
		}
	}
	if c.Intensity == High {
		idx += 8
	}
	return idx
}

var fgLookup = map[int]Name{
	30: Black, 31: Red, 32: Green, 33: Yellow,
	34: Blue, 35: Magenta, 36: Cyan, 37: White,
}

var bgLookup = map[int]Name{
	40: Black, 41: Red, 42: Green, 43: Yellow,
	44: Blue, 45: Magenta, 46: Cyan, 47: White,
}

// ParseColor parses a "name-intensity" id such as "green-low".
func ParseColor(id string) (Color, error) {
	name, level, ok := strings.Cut(strings.ToLower(strings.TrimSpace(id)), "-")
	if !ok {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, id)
	}
	c := Color{Name: Name(name), Intensity: Intensity(level)}
	if !validName(c.Name) {
		return Color{}, fmt.Errorf("%w: unknown color name %q", ErrInvalidColor, name)
	}
	if c.Intensity != Low && c.Intensity != High {
		return Color{}, fmt.Errorf("%w: invalid level %q", ErrInvalidColor, level)
	}
	return c, nil
}

func validName(n Name) bool {
	for _, v := range Names {
		if v == n {
			return true
		}
	}
	return false
}

// PaletteIndex maps a renderer color id to a 256-color palette index.
// Named ids resolve to 0-15, numeric xterm ids are returned as-is.
func PaletteIndex(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(id); err == nil {
		if n < 0 || n > 255 {
			return 0, false
		}
		return n, true
	}
	c, err := ParseColor(id)
	if err != nil {
		return 0, false
	}
	return c.Index(), true
}

// ParseParams splits an SGR parameter string ("1;31") into integers.
// Empty fields read as 0, matching terminal convention.
func ParseParams(s string) []int {
	if s == "" {
		return []int{0}
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	codes := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			n = 0
		}
		codes = append(codes, n)
	}
	if len(codes) == 0 {
		codes = append(codes, 0)
	}
	return codes
}
