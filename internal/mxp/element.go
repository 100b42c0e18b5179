package mxp

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// Attribute is a declared element attribute with its default value.
type Attribute struct {
	Name    string
	Default string
}

// Element is a custom element declared with <!ELEMENT>.
type Element struct {
	Name       string
	Template   string
	Attributes []Attribute

	// Closing closes the tags the template leaves open, innermost first.
	Closing string

	// Flag is the variable bound to the element body, if any.
	Flag string

	// Tag is the line tag number from TAG=, recorded but unused.
	Tag string

	Open  bool
	Empty bool

	matcher *regexp.Regexp

	// placeholders holds the compiled attribute substitutions, longest
	// name first so &value; is replaced before &val;.
	placeholders []placeholder
}

type placeholder struct {
	attr  Attribute
	value *regexp.Regexp // name=value in the opening tag
	ref   *regexp.Regexp // &name; in the template
}

var (
	reTemplateTag = regexp.MustCompile(`<(/?)([a-zA-Z][\w]*)[^>]*>`)
	reAnyTag      = regexp.MustCompile(`<[^>]*>`)
	reFlagSet     = regexp.MustCompile(`(?i)^set\s+`)
	reListSep     = regexp.MustCompile(`[,\s]+`)
)

var markupEscapes = strings.NewReplacer(
	"&quot;", `"`,
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
)

// newElement builds an element from a parsed declaration.
func newElement(d directive) (*Element, error) {
	e := &Element{
		Name:     d.name,
		Template: d.value,
		Open:     d.keyword("OPEN"),
		Empty:    d.keyword("EMPTY"),
	}
	if att, ok := d.option(reOptATT); ok {
		e.Attributes = parseAttributes(att)
	}
	if flag, ok := d.option(reOptFLAG); ok {
		e.Flag = strings.TrimSpace(reFlagSet.ReplaceAllString(flag, ""))
	}
	e.Tag, _ = d.option(reOptTAG)
	e.Closing = closingChain(e.Template)
	e.compilePlaceholders()

	pattern := `(?is)^<` + regexp.QuoteMeta(e.Name) + `\b([^>]*)>(.*?)</` + regexp.QuoteMeta(e.Name) + `\s*>`
	if e.Empty {
		pattern = `(?i)^<` + regexp.QuoteMeta(e.Name) + `\b([^>]*)>`
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: element %s: %v", ErrMalformedDirective, e.Name, err)
	}
	e.matcher = re
	return e, nil
}

func parseAttributes(s string) []Attribute {
	var out []Attribute
	for _, f := range reListSep.Split(strings.TrimSpace(s), -1) {
		if f == "" {
			continue
		}
		name, def, _ := strings.Cut(f, "=")
		out = append(out, Attribute{Name: name, Default: def})
	}
	return out
}

// closingChain returns the closers for tags the template opens and does
// not close, most recently opened first.
func closingChain(template string) string {
	var open []string
	for _, m := range reTemplateTag.FindAllStringSubmatch(template, -1) {
		if strings.HasSuffix(m[0], "/>") {
			continue
		}
		name := m[2]
		if m[1] == "" {
			open = append(open, name)
			continue
		}
		for i := len(open) - 1; i >= 0; i-- {
			if strings.EqualFold(open[i], name) {
				open = append(open[:i], open[i+1:]...)
				break
			}
		}
	}

	var b strings.Builder
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteString("</" + open[i] + ">")
	}
	return b.String()
}

// match reports whether tag is an instance of the element, returning the
// opening tag's attribute text and the body.
func (e *Element) match(tag string) (attrs, body string, ok bool) {
	m := e.matcher.FindStringSubmatch(tag)
	if m == nil {
		return "", "", false
	}
	if e.Empty {
		return m[1], "", true
	}
	return m[1], m[2], true
}

// Expand returns the text an instance of the element is replaced with:
// the template with attribute placeholders filled in, the body, and the
// closing chain.
func (e *Element) Expand(attrs, body string) string {
	return e.fill(attrs) + body + e.Closing
}

func (e *Element) compilePlaceholders() {
	byLength := make([]Attribute, len(e.Attributes))
	copy(byLength, e.Attributes)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].Name) > len(byLength[j].Name)
	})

	e.placeholders = make([]placeholder, 0, len(byLength))
	for _, a := range byLength {
		e.placeholders = append(e.placeholders, placeholder{
			attr:  a,
			value: attributeMatcher(a.Name),
			ref:   regexp.MustCompile(`(?i)&` + regexp.QuoteMeta(a.Name) + `;?`),
		})
	}
}

// fill substitutes &name; placeholders in the template. Missing
// attributes take their declared default.
func (e *Element) fill(attrs string) string {
	if e.Template == "" || len(e.placeholders) == 0 {
		return e.Template
	}

	out := e.Template
	for _, p := range e.placeholders {
		v, ok := attributeValue(p.value, attrs)
		if !ok || v == "" {
			v = p.attr.Default
		}
		out = p.ref.ReplaceAllLiteralString(out, v)
	}
	return out
}

// plainText strips escape sequences and markup from s and resolves the
// standard character entities.
func plainText(s string) string {
	s = xansi.Strip(s)
	s = reAnyTag.ReplaceAllString(s, "")
	return markupEscapes.Replace(s)
}
