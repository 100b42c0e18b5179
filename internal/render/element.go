package render

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies the concrete type of an inline element.
type Kind int

const (
	KindStyle Kind = iota
	KindLink
	KindSend
	KindImage
)

// String returns the element kind name.
func (k Kind) String() string {
	switch k {
	case KindStyle:
		return "style"
	case KindLink:
		return "link"
	case KindSend:
		return "send"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// Element is an inline MXP element placed in the output.
type Element interface {
	ID() string
	Kind() Kind
	// Text returns all text written while the element was open.
	Text() string
	AppendText(s string)
}

type base struct {
	id   string
	text string
}

func newBase() base {
	return base{id: uuid.NewString()}
}

func (b *base) ID() string { return b.id }
func (b *base) Text() string { return b.text }
func (b *base) AppendText(s string) { b.text += s }

// Style is a plain style span: bold, italic, underline or strike-through.
type Style struct {
	base
	Tag byte // one of 'b', 'i', 'u', 's'
}

// NewStyle creates a style span for the given tag letter.
func NewStyle(tag byte) *Style {
	return &Style{base: newBase(), Tag: tag}
}

func (*Style) Kind() Kind { return KindStyle }

// Link is a hyperlink opened outside the client when activated.
type Link struct {
	base
	Href string
}

// NewLink creates a hyperlink element.
func NewLink(href string) *Link {
	return &Link{base: newBase(), Href: href}
}

func (*Link) Kind() Kind { return KindLink }

// Image is an inline image. Terminals show a placeholder.
type Image struct {
	base
	URL    string
	Width  string
	Height string
	Align  string
}

// NewImage creates an image element.
func NewImage(url, width, height, align string) *Image {
	return &Image{base: newBase(), URL: url, Width: width, Height: height, Align: align}
}

func (*Image) Kind() Kind { return KindImage }

// Placeholder is the text shown in place of the image.
func (i *Image) Placeholder() string {
	return fmt.Sprintf("[image %s]", i.URL)
}

// Choice is one entry of a send link's pop-up menu.
type Choice struct {
	Label   string
	Command string
}

// SendHandler receives the command chosen on a send link. When prompt is
// true the command should be placed in the input line instead of sent.
type SendHandler func(command string, prompt bool)

// Send is a clickable element issuing one or more commands.
type Send struct {
	base
	Commands []string
	Titles   []string
	Prompt   bool
	// Explicit is true when the commands came from an href attribute rather
	// than from the element's own text.
	Explicit bool

	handler SendHandler
}

// NewSend creates a send link.
func NewSend(commands, titles []string, prompt bool) *Send {
	return &Send{
		base:     newBase(),
		Commands: commands,
		Titles:   titles,
		Prompt:   prompt,
		Explicit: len(commands) > 0,
	}
}

func (*Send) Kind() Kind { return KindSend }

// SetHandler sets the function invoked on activation.
func (s *Send) SetHandler(h SendHandler) {
	s.handler = h
}

// Title returns the tooltip for the link.
func (s *Send) Title() string {
	if len(s.Titles) > 0 {
		return s.Titles[0]
	}
	if len(s.Commands) > 0 {
		return s.Commands[0]
	}
	return s.text
}

// NeedsMenu reports whether activation requires choosing among commands.
func (s *Send) NeedsMenu() bool {
	return !s.Prompt && len(s.Commands) > 1
}

// Choices returns the menu entries of a multi-command link. When there is
// one more title than commands, the first title is a caption and is skipped.
func (s *Send) Choices() []Choice {
	titles := s.Titles
	if len(titles) == 0 {
		titles = s.Commands
	}
	start := 0
	if len(s.Commands) == len(titles)-1 {
		start = 1
	}
	var out []Choice
	for i := start; i < len(titles); i++ {
		ci := i - start
		if ci >= len(s.Commands) {
			break
		}
		out = append(out, Choice{Label: titles[i], Command: s.Commands[ci]})
	}
	return out
}

// Activate issues the link's command. For multi-command links, choice
// selects the menu entry; it is ignored otherwise. Returns false when
// nothing was issued.
func (s *Send) Activate(choice int) bool {
	if s.handler == nil || len(s.Commands) == 0 {
		return false
	}
	if s.Prompt {
		s.handler(s.Commands[0], true)
		return true
	}
	if len(s.Commands) == 1 {
		s.handler(s.Commands[0], false)
		return true
	}
	choices := s.Choices()
	if choice < 0 || choice >= len(choices) {
		return false
	}
	s.handler(choices[choice].Command, false)
	return true
}
