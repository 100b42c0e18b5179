package script

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudstream/internal/logging"
)

const (
	// VariablesTable is the Lua global holding the variables.
	VariablesTable = "mxp"

	// ChangeHook is the Lua global function called by NotifyVariableChanges.
	ChangeHook = "on_variables_changed"

	// DefaultTimeout bounds a single script execution.
	DefaultTimeout = 2 * time.Second
)

// Sender receives commands issued by scripts.
type Sender interface {
	EmitCommand(text string, silent bool)
}

// Store is a variable store backed by a sandboxed Lua state. It is safe
// for concurrent use; Lua execution is serialized.
type Store struct {
	mu sync.Mutex

	L    *lua.LState
	vars *lua.LTable

	sender  Sender
	log     *logging.Logger
	timeout time.Duration

	// changed collects names updated since the last notification.
	changed map[string]struct{}

	// outbox holds commands sent by Lua until the state is unlocked.
	outbox []string

	onChange []func(name, value string)
	onNotify []func(names []string)

	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithSender sets the destination of send().
func WithSender(s Sender) Option {
	return func(st *Store) {
		st.sender = s
	}
}

// WithLogger sets the logger used by log() and for hook errors.
func WithLogger(l *logging.Logger) Option {
	return func(st *Store) {
		st.log = l
	}
}

// WithTimeout bounds each script execution.
func WithTimeout(d time.Duration) Option {
	return func(st *Store) {
		st.timeout = d
	}
}

// NewStore creates a store with an empty variable table.
func NewStore(opts ...Option) *Store {
	s := &Store{
		log:     logging.Null,
		timeout: DefaultTimeout,
		changed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("script")

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	s.L = L
	s.vars = L.NewTable()
	L.SetGlobal(VariablesTable, s.vars)
	L.SetGlobal("send", L.NewFunction(s.luaSend))
	L.SetGlobal("log", L.NewFunction(s.luaLog))
	return s
}

// openSafeLibraries opens the base, table, string and math libraries and
// removes the loaders.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (s *Store) luaSend(L *lua.LState) int {
	s.outbox = append(s.outbox, L.CheckString(1))
	return 0
}

func (s *Store) luaLog(L *lua.LState) int {
	s.log.Info("%s", L.CheckString(1))
	return 0
}

// Get returns a variable as a string.
func (s *Store) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", false
	}
	v := s.vars.RawGetString(name)
	if v == lua.LNil {
		return "", false
	}
	return lua.LVAsString(v), true
}

// Set stores a variable and fires change listeners.
func (s *Store) Set(name, value string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.vars.RawSetString(name, lua.LString(value))
	s.changed[name] = struct{}{}
	listeners := s.onChange
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(name, value)
	}
}

// Delete removes a variable and fires change listeners with an empty value.
func (s *Store) Delete(name string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.vars.RawSetString(name, lua.LNil)
	s.changed[name] = struct{}{}
	listeners := s.onChange
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(name, "")
	}
}

// Names returns the variable names in sorted order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	s.vars.ForEach(func(k, _ lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			names = append(names, string(ks))
		}
	})
	sort.Strings(names)
	return names
}

// OnChange registers a listener for every Set and Delete.
func (s *Store) OnChange(fn func(name, value string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// OnNotify registers a listener for NotifyVariableChanges.
func (s *Store) OnNotify(fn func(names []string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNotify = append(s.onNotify, fn)
}

// NotifyVariableChanges implements stream.VariableNotifier. It calls the
// Lua change hook, if defined, with the names changed since the previous
// call, then the Go listeners.
func (s *Store) NotifyVariableChanges() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	names := make([]string, 0, len(s.changed))
	for n := range s.changed {
		names = append(names, n)
	}
	sort.Strings(names)
	s.changed = make(map[string]struct{})

	if hook := s.L.GetGlobal(ChangeHook); hook.Type() == lua.LTFunction {
		arg := s.L.NewTable()
		for _, n := range names {
			arg.Append(lua.LString(n))
		}
		err := s.run(func() error {
			return s.L.CallByParam(lua.P{Fn: hook, NRet: 0, Protect: true}, arg)
		})
		if err != nil {
			s.log.Warn("%s: %v", ChangeHook, err)
		}
	}
	listeners := s.onNotify
	outbox := s.drain()
	s.mu.Unlock()

	s.flush(outbox)
	for _, fn := range listeners {
		fn(names)
	}
}

// DoString runs Lua code.
func (s *Store) DoString(code string) error {
	return s.exec(func() error { return s.L.DoString(code) })
}

// DoFile runs a Lua file.
func (s *Store) DoFile(path string) error {
	if err := s.exec(func() error { return s.L.DoFile(path) }); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (s *Store) exec(fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	err := s.run(fn)
	outbox := s.drain()
	s.mu.Unlock()

	s.flush(outbox)
	return err
}

// run executes fn under the store's timeout with panic recovery. The
// caller holds mu.
func (s *Store) run(fn func() error) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrScript, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%w: %v", ErrScript, err)
	}
	return nil
}

func (s *Store) drain() []string {
	out := s.outbox
	s.outbox = nil
	return out
}

func (s *Store) flush(commands []string) {
	if s.sender == nil {
		if len(commands) > 0 {
			s.log.Debug("dropping %d script commands: no sender", len(commands))
		}
		return
	}
	for _, c := range commands {
		s.sender.EmitCommand(c, false)
	}
}

// Close releases the Lua state.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
