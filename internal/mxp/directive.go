package mxp

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reDirective = regexp.MustCompile(`(?is)^<!(ELEMENT|EL|ENTITY|EN)\s+(\w+)(.*)>$`)
	reQuoted    = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'[^']*'`)
	reOption    = regexp.MustCompile(`\w+\s*=\s*(?:"(?:[^"\\]|\\.)*"|'[^']*'|\S*)`)
)

// directive is a parsed <!ELEMENT> or <!ENTITY> declaration.
type directive struct {
	entity bool
	name   string

	// value is the leading quoted string, unquoted, and hasValue reports
	// whether one was present.
	value    string
	hasValue bool

	// rest is everything after the name and value.
	rest string
}

func parseDirective(tag string) (directive, error) {
	m := reDirective.FindStringSubmatch(strings.TrimSpace(tag))
	if m == nil {
		if strings.HasPrefix(tag, "<!") {
			return directive{}, fmt.Errorf("%w: %q", ErrUnknownDirective, tag)
		}
		return directive{}, fmt.Errorf("%w: %q", ErrMalformedDirective, tag)
	}

	d := directive{
		entity: strings.HasPrefix(strings.ToUpper(m[1]), "EN"),
		name:   m[2],
	}
	rest := strings.TrimSpace(m[3])
	if v, after, ok := leadingQuoted(rest); ok {
		d.value, d.hasValue = v, true
		rest = after
	} else if start, end, ok := firstBareQuoted(rest); ok {
		// Keywords may come first: <!ENTITY HP ADD "5">.
		d.value, d.hasValue = unquote(rest[start:end]), true
		rest = strings.TrimSpace(rest[:start]) + " " + strings.TrimSpace(rest[end:])
	}
	d.rest = strings.TrimSpace(rest)
	return d, nil
}

// firstBareQuoted locates the first quoted string in s that is not the
// value of a NAME=value option.
func firstBareQuoted(s string) (start, end int, ok bool) {
	options := reOption.FindAllStringIndex(s, -1)
	for _, q := range reQuoted.FindAllStringIndex(s, -1) {
		inOption := false
		for _, o := range options {
			if q[0] >= o[0] && q[1] <= o[1] {
				inOption = true
				break
			}
		}
		if !inOption {
			return q[0], q[1], true
		}
	}
	return 0, 0, false
}

func unquote(q string) string {
	if len(q) < 2 {
		return q
	}
	return q[1 : len(q)-1]
}

// leadingQuoted splits a single- or double-quoted string off the front of
// s. Backslash escapes are honored inside double quotes.
func leadingQuoted(s string) (value, rest string, ok bool) {
	if s == "" || (s[0] != '"' && s[0] != '\'') {
		return "", s, false
	}
	q := s[0]
	for i := 1; i < len(s); i++ {
		switch {
		case s[i] == '\\' && q == '"' && i+1 < len(s):
			i++
		case s[i] == q:
			return s[1:i], s[i+1:], true
		}
	}
	return "", s, false
}

// keyword reports whether the bare word appears in the directive's
// trailing options, outside any quoted string.
func (d directive) keyword(word string) bool {
	return hasWord(d.rest, word)
}

// hasWord reports whether word appears in s as a bare word, ignoring
// quoted strings and name=value options.
func hasWord(s, word string) bool {
	bare := reQuoted.ReplaceAllString(reOption.ReplaceAllString(s, ""), "")
	for _, f := range strings.Fields(bare) {
		if strings.EqualFold(f, word) {
			return true
		}
	}
	return false
}

// Attribute matchers for the fixed option and attribute names.
var (
	reOptATT  = attributeMatcher("ATT")
	reOptFLAG = attributeMatcher("FLAG")
	reOptTAG  = attributeMatcher("TAG")
	reAttHref = attributeMatcher("href")
	reAttHint = attributeMatcher("hint")
)

// option returns the value of a NAME=value option in the trailing options.
func (d directive) option(re *regexp.Regexp) (string, bool) {
	return attributeValue(re, d.rest)
}

// attributeMatcher compiles the matcher for name=value. The value may be
// double-quoted, single-quoted or bare.
func attributeMatcher(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)(?:^|[\s<])` + regexp.QuoteMeta(name) + `\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
}

// attributeValue extracts the value matched by an attributeMatcher from
// the attribute text of a tag.
func attributeValue(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	for _, v := range m[1:] {
		if v != "" {
			return v, true
		}
	}
	return "", true
}
