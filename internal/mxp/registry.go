package mxp

import "strings"

// Registry holds custom elements in declaration order, keyed by
// upper-cased name.
type Registry struct {
	elements []*Element
	index    map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

func key(name string) string {
	return strings.ToUpper(name)
}

// Put registers e, replacing an element of the same name in place.
func (r *Registry) Put(e *Element) {
	k := key(e.Name)
	if i, ok := r.index[k]; ok {
		r.elements[i] = e
		return
	}
	r.index[k] = len(r.elements)
	r.elements = append(r.elements, e)
}

// Delete removes the named element and reports whether it existed.
func (r *Registry) Delete(name string) bool {
	k := key(name)
	i, ok := r.index[k]
	if !ok {
		return false
	}
	r.elements = append(r.elements[:i], r.elements[i+1:]...)
	delete(r.index, k)
	for j := i; j < len(r.elements); j++ {
		r.index[key(r.elements[j].Name)] = j
	}
	return true
}

// Get returns the named element.
func (r *Registry) Get(name string) (*Element, bool) {
	i, ok := r.index[key(name)]
	if !ok {
		return nil, false
	}
	return r.elements[i], true
}

// Names returns element names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.elements))
	for i, e := range r.elements {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of elements.
func (r *Registry) Len() int {
	return len(r.elements)
}

// Clear removes all elements.
func (r *Registry) Clear() {
	r.elements = nil
	r.index = make(map[string]int)
}

// lookup returns the first element matching tag, in declaration order.
func (r *Registry) lookup(tag string) (e *Element, attrs, body string, ok bool) {
	for _, e := range r.elements {
		if attrs, body, ok := e.match(tag); ok {
			return e, attrs, body, true
		}
	}
	return nil, "", "", false
}
