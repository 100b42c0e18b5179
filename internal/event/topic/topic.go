// Package topic defines dot-separated event topics and wildcard patterns.
package topic

import (
	"errors"
	"strings"
)

// Topic is a hierarchical event type such as "mxp.tag". Used as a
// subscription pattern it may contain wildcards.
type Topic string

const (
	// WildcardSingle matches exactly one segment.
	WildcardSingle = "*"

	// WildcardMulti matches zero or more segments.
	WildcardMulti = "**"

	// Separator separates topic segments.
	Separator = "."
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the topic split on the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Validate checks that the topic is non-empty and has no empty segments.
func (t Topic) Validate() error {
	if t == "" {
		return errors.New("empty topic")
	}
	for _, s := range t.Segments() {
		if s == "" {
			return errors.New("empty segment in " + string(t))
		}
	}
	return nil
}

// Matches reports whether the concrete topic other matches pattern t.
func (t Topic) Matches(other Topic) bool {
	return match(t.Segments(), other.Segments())
}

func match(pattern, segs []string) bool {
	for len(pattern) > 0 {
		p := pattern[0]
		if p == WildcardMulti {
			for i := 0; i <= len(segs); i++ {
				if match(pattern[1:], segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 || (p != WildcardSingle && p != segs[0]) {
			return false
		}
		pattern, segs = pattern[1:], segs[1:]
	}
	return len(segs) == 0
}
