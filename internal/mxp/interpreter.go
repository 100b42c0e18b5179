package mxp

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dshills/mudstream/internal/event"
	"github.com/dshills/mudstream/internal/event/events"
	"github.com/dshills/mudstream/internal/logging"
	"github.com/dshills/mudstream/internal/render"
)

// DefaultClientName is announced in replies to <VERSION>.
const DefaultClientName = "mudstream"

// CommandBus receives commands issued by send links and version replies.
type CommandBus interface {
	EmitCommand(text string, silent bool)
	SetInput(text string)
}

// Injector feeds expanded markup back into the decoder.
type Injector interface {
	Inject(text string) bool
}

// Publisher receives tag and variable events.
type Publisher interface {
	Publish(ctx context.Context, ev any) error
}

// Redirector is implemented by targets that support <dest> windows.
type Redirector interface {
	PushTarget(name string)
	PopTarget()
}

// maxExpansionDepth bounds nested custom element expansion: text produced
// by a template is scanned once more, but custom elements in it are left
// to the built-ins.
const maxExpansionDepth = 1

type tagKind int

const (
	tagStyle tagKind = iota
	tagAnchor
	tagSend
	tagRedirect
)

// openTag is an entry of the open-tag stack.
type openTag struct {
	kind  tagKind
	style byte
}

// Interpreter handles markup tags passed up by the stream decoder.
type Interpreter struct {
	target    render.Target
	vars      Variables
	commands  CommandBus
	injector  Injector
	publisher Publisher
	log       *logging.Logger

	elements *Registry
	open     []openTag

	// expanding is the number of custom element expansions in progress.
	expanding int

	images bool
	client string
}

// New creates an interpreter writing elements to target and variables to
// vars. commands may be nil, in which case send links are inert.
func New(target render.Target, vars Variables, commands CommandBus, log *logging.Logger) *Interpreter {
	if log == nil {
		log = logging.Null
	}
	if vars == nil {
		vars = NewMemoryVariables()
	}
	return &Interpreter{
		target:   target,
		vars:     vars,
		commands: commands,
		log:      log.WithComponent("mxp"),
		elements: NewRegistry(),
		images:   true,
		client:   DefaultClientName,
	}
}

// SetInjector sets the decoder expanded text is fed to.
func (it *Interpreter) SetInjector(inj Injector) {
	it.injector = inj
}

// SetPublisher sets the sink for tag and variable events.
func (it *Interpreter) SetPublisher(p Publisher) {
	it.publisher = p
}

// SetImages enables or disables inline images.
func (it *Interpreter) SetImages(on bool) {
	it.images = on
}

// SetClientName sets the name announced in version replies.
func (it *Interpreter) SetClientName(name string) {
	if name != "" {
		it.client = name
	}
}

// Elements returns the declared custom element names in declaration order.
func (it *Interpreter) Elements() []string {
	return it.elements.Names()
}

// Element returns a declared custom element.
func (it *Interpreter) Element(name string) (*Element, bool) {
	return it.elements.Get(name)
}

// OpenTags returns the depth of the open-tag stack.
func (it *Interpreter) OpenTags() int {
	return len(it.open)
}

// Reset forgets all declared elements and open tags, e.g. on reconnect.
func (it *Interpreter) Reset() {
	it.elements.Clear()
	it.open = nil
	it.expanding = 0
}

// NeedsBody implements stream.TagHandler. Custom elements with a body are
// expanded as a whole, so their opener must wait for the closer.
func (it *Interpreter) NeedsBody(name string) bool {
	e, ok := it.elements.Get(name)
	return ok && !e.Empty
}

// HandleTag implements stream.TagHandler.
func (it *Interpreter) HandleTag(tag string) bool {
	if e, attrs, body, ok := it.elements.lookup(tag); ok {
		if it.expanding < maxExpansionDepth {
			return it.expand(e, tag, attrs, body)
		}
		// Templates naming custom elements are not expanded again; the
		// tag falls through to the built-ins.
		it.log.Debug("element %s not expanded inside an expansion: %q", e.Name, tag)
	}

	if strings.HasPrefix(tag, "<!") {
		return it.declare(tag)
	}

	for _, h := range []func(string) (bool, bool){
		it.handleVersion,
		it.handleImage,
		it.handleDest,
		it.handleAnchor,
		it.handleStyle,
		it.handleSend,
	} {
		if handled, changed := h(tag); handled {
			return changed
		}
	}

	it.log.Debug("unsupported tag %q", tag)
	if m := reUnknownOpen.FindStringSubmatch(tag); m != nil {
		if inner, ok := balancedInner(tag, len(m[0]), m[1]); ok {
			return it.inject(inner)
		}
	}
	return false
}

// OnNewline implements stream.TagHandler: everything still open is closed.
func (it *Interpreter) OnNewline() {
	for i := len(it.open) - 1; i >= 0; i-- {
		it.release(it.open[i])
	}
	it.open = it.open[:0]
}

func (it *Interpreter) push(t openTag, e render.Element) {
	it.open = append(it.open, t)
	if e != nil {
		it.target.PushElement(e)
	}
}

// pop closes the innermost open tag if it is of kind k.
func (it *Interpreter) pop(k tagKind) bool {
	n := len(it.open)
	if n == 0 || it.open[n-1].kind != k {
		return false
	}
	t := it.open[n-1]
	it.open = it.open[:n-1]
	it.release(t)
	return true
}

// unwindTo closes open tags, innermost first, until n remain. A body that
// left tags open is closed together with the tag that contains it.
func (it *Interpreter) unwindTo(n int) {
	for len(it.open) > n {
		t := it.open[len(it.open)-1]
		it.open = it.open[:len(it.open)-1]
		it.release(t)
	}
}

func (it *Interpreter) top() (openTag, bool) {
	if len(it.open) == 0 {
		return openTag{}, false
	}
	return it.open[len(it.open)-1], true
}

func (it *Interpreter) release(t openTag) {
	if t.kind == tagRedirect {
		if r, ok := it.target.(Redirector); ok {
			r.PopTarget()
		}
		return
	}
	e := it.target.PopElement()
	if s, ok := e.(*render.Send); ok {
		it.finishSend(s)
	}
}

func (it *Interpreter) inject(text string) bool {
	if text == "" {
		return false
	}
	if it.injector == nil {
		it.target.AddText(text)
		return false
	}
	return it.injector.Inject(text)
}

func (it *Interpreter) expand(e *Element, tag, attrs, body string) bool {
	changed := false
	if e.Flag != "" {
		value := plainText(body)
		it.vars.Set(e.Flag, value)
		changed = true
		it.publishVariable(e.Flag, value, false)
	}
	it.publishTag(e.Name, tag)

	it.expanding++
	defer func() { it.expanding-- }()
	return it.inject(e.Expand(attrs, body)) || changed
}

// DeclareElement parses an <!ELEMENT> directive and registers, replaces or
// deletes the element.
func (it *Interpreter) DeclareElement(tag string) error {
	d, err := parseDirective(tag)
	if err != nil {
		return err
	}
	if d.entity {
		return fmt.Errorf("%w: not an element: %q", ErrMalformedDirective, tag)
	}
	return it.declareElement(d)
}

func (it *Interpreter) declareElement(d directive) error {
	if d.keyword("DELETE") {
		it.elements.Delete(d.name)
		return nil
	}
	e, err := newElement(d)
	if err != nil {
		return err
	}
	it.elements.Put(e)
	return nil
}

// DeclareEntity parses an <!ENTITY> directive and applies it to the
// variable store.
func (it *Interpreter) DeclareEntity(tag string) error {
	d, err := parseDirective(tag)
	if err != nil {
		return err
	}
	if !d.entity {
		return fmt.Errorf("%w: not an entity: %q", ErrMalformedDirective, tag)
	}
	it.declareEntity(d)
	return nil
}

func (it *Interpreter) declareEntity(d directive) {
	name := d.name
	value := entityValue(d.value)

	if d.keyword("DELETE") {
		it.vars.Delete(name)
		it.publishVariable(name, "", true)
		return
	}

	cur, _ := it.vars.Get(name)
	switch {
	case d.keyword("ADD"):
		if cur != "" {
			cur += "|"
		}
		cur += value
	case d.keyword("REMOVE"):
		var keep []string
		for _, v := range strings.Split(cur, "|") {
			if v != value {
				keep = append(keep, v)
			}
		}
		cur = strings.Join(keep, "|")
	default:
		cur = value
	}
	it.vars.Set(name, cur)

	if strings.EqualFold(name, "STARTPROMPT") {
		it.target.MarkCurrentLineAsPrompt()
	}
	if !d.keyword("PRIVATE") {
		it.publishVariable(name, cur, false)
	}
}

// entityValue resolves \" and %XX escapes in a declared value.
func entityValue(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

func (it *Interpreter) declare(tag string) bool {
	d, err := parseDirective(tag)
	if err != nil {
		it.log.Debug("%v", err)
		return false
	}
	if d.entity {
		it.declareEntity(d)
		return true
	}
	if err := it.declareElement(d); err != nil {
		it.log.Warn("%v", err)
	}
	return false
}

func (it *Interpreter) publishTag(kind, value string) {
	it.publish(event.NewEvent(events.TopicMXPTag, events.MXPTag{Kind: kind, Value: value}, "mxp"))
}

func (it *Interpreter) publishVariable(name, value string, deleted bool) {
	it.publish(event.NewEvent(events.TopicMXPVariable,
		events.MXPVariable{Name: name, Value: value, Deleted: deleted}, "mxp"))
}

func (it *Interpreter) publish(ev any) {
	if it.publisher == nil {
		return
	}
	if err := it.publisher.Publish(context.Background(), ev); err != nil {
		it.log.Debug("publish: %v", err)
	}
}
