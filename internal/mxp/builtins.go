package mxp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/mudstream/internal/render"
)

var (
	reVersion     = regexp.MustCompile(`(?i)^<version>$`)
	reImage       = regexp.MustCompile(`(?i)^<(tsimg|tsimage|image|img) ?(FName=["|']?([^ '"]+)["|']?)? ?url="([^">]*)"? ?(W="?(\d+)"?)? ?(H="?(\d+)"?)? ?(ALIGN="?([^">]+)"?)?>`)
	reDestOpen    = regexp.MustCompile(`(?i)^<dest\s+(?:name\s*=\s*)?["']?(\w+)["']?\s*>`)
	reDestClose   = regexp.MustCompile(`(?i)^</dest\s*>$`)
	reAnchorOpen  = regexp.MustCompile(`(?i)^<a(\s[^>]*)?>`)
	reAnchorClose = regexp.MustCompile(`(?i)^</a\s*>$`)
	reStyleOpen   = regexp.MustCompile(`(?i)^<(b|i|u|s|bold|strong|italic|em|underline|strikeout)(\s[^>]*)?>`)
	reStyleClose  = regexp.MustCompile(`(?i)^</(b|i|u|s|bold|strong|italic|em|underline|strikeout)\s*>$`)
	reSendOpen    = regexp.MustCompile(`(?i)^<send\b([^>]*)>`)
	reSendClose   = regexp.MustCompile(`(?i)^</send\s*>$`)
	reUnknownOpen = regexp.MustCompile(`^<([a-zA-Z0-9]+)\b[^>]*>`)
)

var styleLetters = map[string]byte{
	"b": 'b', "bold": 'b', "strong": 'b',
	"i": 'i', "italic": 'i', "em": 'i',
	"u": 'u', "underline": 'u',
	"s": 's', "strikeout": 's',
}

// balancedInner returns the text between an opener of length openLen and
// a trailing </name> closer.
func balancedInner(tag string, openLen int, name string) (string, bool) {
	closer := "</" + name + ">"
	if len(tag) < openLen+len(closer) || !strings.EqualFold(tag[len(tag)-len(closer):], closer) {
		return "", false
	}
	return tag[openLen : len(tag)-len(closer)], true
}

func (it *Interpreter) handleVersion(tag string) (bool, bool) {
	if !reVersion.MatchString(tag) {
		return false, false
	}
	if it.commands != nil {
		it.commands.EmitCommand(fmt.Sprintf("\x1b[1z<VERSION CLIENT=%s MXP=0.01>", it.client), true)
	}
	it.publishTag("version", tag)
	return true, false
}

func (it *Interpreter) handleImage(tag string) (bool, bool) {
	m := reImage.FindStringSubmatch(tag)
	if m == nil {
		return false, false
	}
	if !it.images {
		return true, false
	}

	src := m[4]
	if m[4] != "" && m[3] != "" {
		src = m[4] + m[3]
	}
	width, height := "90%", "70%"
	if m[6] != "" {
		width = m[6] + "px"
	}
	if m[8] != "" {
		height = m[8] + "px"
	}

	it.target.PushElement(render.NewImage(src, width, height, strings.ToLower(m[10])))
	it.target.PopElement()
	it.publishTag(strings.ToLower(m[1]), tag)
	return true, false
}

func (it *Interpreter) handleDest(tag string) (bool, bool) {
	if reDestClose.MatchString(tag) {
		if !it.pop(tagRedirect) {
			it.log.Debug("closing dest tag with no opening tag")
		}
		return true, false
	}

	m := reDestOpen.FindStringSubmatch(tag)
	if m == nil {
		return false, false
	}
	base := len(it.open)
	it.push(openTag{kind: tagRedirect}, nil)
	if r, ok := it.target.(Redirector); ok {
		r.PushTarget(m[1])
	}
	it.publishTag("dest", tag)

	changed := false
	if inner, ok := balancedInner(tag, len(m[0]), "dest"); ok {
		changed = it.inject(inner)
		it.unwindTo(base)
	}
	return true, changed
}

func (it *Interpreter) handleAnchor(tag string) (bool, bool) {
	if reAnchorClose.MatchString(tag) {
		if !it.pop(tagAnchor) {
			it.log.Debug("closing a tag with no opening tag")
		}
		return true, false
	}

	m := reAnchorOpen.FindStringSubmatch(tag)
	if m == nil {
		return false, false
	}
	href, _ := attributeValue(reAttHref, m[1])
	base := len(it.open)
	it.push(openTag{kind: tagAnchor}, render.NewLink(href))
	it.publishTag("a", tag)

	changed := false
	if inner, ok := balancedInner(tag, len(m[0]), "a"); ok {
		changed = it.inject(inner)
		it.unwindTo(base)
	}
	return true, changed
}

func (it *Interpreter) handleStyle(tag string) (bool, bool) {
	if m := reStyleClose.FindStringSubmatch(tag); m != nil {
		letter := styleLetters[strings.ToLower(m[1])]
		if t, ok := it.top(); !ok || t.kind != tagStyle || t.style != letter {
			it.log.Debug("closing %s tag with no opening tag", m[1])
			return true, false
		}
		it.pop(tagStyle)
		return true, false
	}

	m := reStyleOpen.FindStringSubmatch(tag)
	if m == nil {
		return false, false
	}
	letter := styleLetters[strings.ToLower(m[1])]
	base := len(it.open)
	it.push(openTag{kind: tagStyle, style: letter}, render.NewStyle(letter))
	it.publishTag(string(letter), tag)

	changed := false
	if inner, ok := balancedInner(tag, len(m[0]), m[1]); ok {
		changed = it.inject(inner)
		it.unwindTo(base)
	}
	return true, changed
}

func (it *Interpreter) handleSend(tag string) (bool, bool) {
	if reSendClose.MatchString(tag) {
		if !it.pop(tagSend) {
			it.log.Debug("closing send tag with no opening tag")
			return true, false
		}
		it.publishTag("send", tag)
		return true, false
	}

	m := reSendOpen.FindStringSubmatch(tag)
	if m == nil {
		return false, false
	}
	href, hint, prompt := sendAttributes(m[1])
	inner, balanced := balancedInner(tag, len(m[0]), "send")

	var commands, titles []string
	switch {
	case href != "":
		commands = splitList(plainText(href))
	case balanced:
		commands = splitList(strings.TrimSpace(plainText(inner)))
	}
	if hint != "" {
		titles = strings.Split(hint, "|")
	}

	s := render.NewSend(commands, titles, prompt)
	s.SetHandler(it.activate)
	base := len(it.open)
	it.push(openTag{kind: tagSend}, s)
	it.publishTag("send", tag)

	if !balanced {
		return true, false
	}
	changed := it.inject(inner)
	it.unwindTo(base)
	return true, changed
}

// sendAttributes reads href, hint and the prompt flag from the attribute
// text of a send tag. href and hint may also be given positionally as
// quoted strings.
func sendAttributes(attrs string) (href, hint string, prompt bool) {
	href, hasHref := attributeValue(reAttHref, attrs)
	hint, hasHint := attributeValue(reAttHint, attrs)

	rest := strings.TrimSpace(attrs)
	if !hasHref {
		if v, after, ok := leadingQuoted(rest); ok {
			href, rest = v, strings.TrimSpace(after)
		}
	}
	if !hasHint {
		if v, _, ok := leadingQuoted(rest); ok {
			hint = v
		}
	}
	return href, hint, hasWord(attrs, "prompt")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}

// finishSend gives a send link whose commands come from its own text its
// commands once that text is complete.
func (it *Interpreter) finishSend(s *render.Send) {
	if s.Explicit {
		return
	}
	s.Commands = splitList(strings.TrimSpace(plainText(s.Text())))
	s.Explicit = len(s.Commands) > 0
}

func (it *Interpreter) activate(command string, prompt bool) {
	if it.commands == nil {
		return
	}
	if prompt {
		it.commands.SetInput(command)
		return
	}
	it.commands.EmitCommand(command, false)
}
