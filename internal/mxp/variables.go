package mxp

// Variables is the store entity and bound element values are written to.
type Variables interface {
	Get(name string) (string, bool)
	Set(name, value string)
	Delete(name string)
}

// MemoryVariables is a map-backed Variables for tests and for running
// without a scripting layer.
type MemoryVariables map[string]string

// NewMemoryVariables creates an empty store.
func NewMemoryVariables() MemoryVariables {
	return make(MemoryVariables)
}

func (m MemoryVariables) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func (m MemoryVariables) Set(name, value string) { m[name] = value }
func (m MemoryVariables) Delete(name string) { delete(m, name) }
