package stream

import (
	"regexp"
	"strings"
)

const esc = '\x1b'

// Sequence grammars, tried in this order at every escape or markup start.
var (
	reEntity      = regexp.MustCompile(`^&(\w+);`)
	reReset       = regexp.MustCompile(`^\x1b\[m`)
	reSGR         = regexp.MustCompile(`^\x1b\[([0-9]+(?:;[0-9]+)*)m`)
	reTagEscape   = regexp.MustCompile(`^\x1b\[[1-7]z(<.*?>)`)
	reLineMode    = regexp.MustCompile(`^\x1b\[[1-7]z`)
	reTagOpen     = regexp.MustCompile(`^<([a-zA-Z0-9]+)\b[^>]*>`)
	reDeclaration = regexp.MustCompile(`^<!(?:[^"'>]|"[^"]*"|'[^']*')*>`)
	reCursor      = regexp.MustCompile(`^\x1b\[([0-9]*);([0-9]*)H`)
	reCSI         = regexp.MustCompile(`^\x1b\[[0-9]*;?[0-9]*?[ABCDEFGHJKSTfn]`)
	reLoneTag     = regexp.MustCompile(`^<(/?)(\w+)(?:\s[^>]*)?>`)
)

var entities = map[string]string{
	"quot": `"`,
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
}

// matchBalanced matches `<name ...>body</name>` at the start of s, with the
// closer compared case-insensitively. It returns the length of the match
// or -1.
func matchBalanced(s string) int {
	m := reTagOpen.FindStringSubmatch(s)
	if m == nil {
		return -1
	}
	closer := "</" + m[1] + ">"
	j := indexFold(s[len(m[0]):], closer)
	if j < 0 {
		return -1
	}
	return len(m[0]) + j + len(closer)
}

// indexFold is strings.Index with ASCII case folding. sub must be ASCII
// and start with '<'.
func indexFold(s, sub string) int {
	n := len(sub)
	for i := 0; i+n <= len(s); i++ {
		if s[i] == '<' && strings.EqualFold(s[i:i+n], sub) {
			return i
		}
	}
	return -1
}

// special reports whether c can start a sequence in the given mode.
func special(c byte, markup bool) bool {
	switch c {
	case '\r', '\n', esc:
		return true
	case '<', '&':
		return markup
	}
	return false
}
