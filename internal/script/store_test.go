package script

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/mudstream/internal/mxp"
	"github.com/dshills/mudstream/internal/stream"
)

var (
	_ mxp.Variables           = (*Store)(nil)
	_ stream.VariableNotifier = (*Store)(nil)
)

type recordingSender struct {
	commands []string
}

func (r *recordingSender) EmitCommand(text string, silent bool) {
	r.commands = append(r.commands, text)
}

func TestStore_SetGetDelete(t *testing.T) {
	s := NewStore()
	defer s.Close()

	if _, ok := s.Get("HP"); ok {
		t.Error("expected missing variable")
	}

	s.Set("HP", "100")
	if v, ok := s.Get("HP"); !ok || v != "100" {
		t.Errorf("expected '100', got %q (%v)", v, ok)
	}

	s.Set("Gold", "")
	if v, ok := s.Get("Gold"); !ok || v != "" {
		t.Errorf("expected empty existing variable, got %q (%v)", v, ok)
	}

	s.Delete("HP")
	if _, ok := s.Get("HP"); ok {
		t.Error("expected variable deleted")
	}

	names := s.Names()
	if len(names) != 1 || names[0] != "Gold" {
		t.Errorf("expected [Gold], got %v", names)
	}
}

func TestStore_OnChange(t *testing.T) {
	s := NewStore()
	defer s.Close()

	var got []string
	s.OnChange(func(name, value string) {
		got = append(got, name+"="+value)
	})

	s.Set("HP", "5")
	s.Delete("HP")

	if len(got) != 2 || got[0] != "HP=5" || got[1] != "HP=" {
		t.Errorf("expected [HP=5 HP=], got %v", got)
	}
}

func TestStore_LuaReadsVariables(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Set("HP", "42")
	if err := s.DoString(`mxp.Double = tostring(tonumber(mxp.HP) * 2)`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, _ := s.Get("Double"); v != "84" {
		t.Errorf("expected '84', got %q", v)
	}
}

func TestStore_NotifyVariableChanges(t *testing.T) {
	s := NewStore()
	defer s.Close()

	err := s.DoString(`
		calls = 0
		last = ""
		function on_variables_changed(names)
			calls = calls + 1
			last = table.concat(names, ",")
		end
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var notified [][]string
	s.OnNotify(func(names []string) { notified = append(notified, names) })

	s.Set("b", "1")
	s.Set("a", "2")
	s.Set("a", "3")
	s.NotifyVariableChanges()

	if err := s.DoString(`mxp.result = calls .. ":" .. last`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := s.Get("result"); v != "1:a,b" {
		t.Errorf("expected '1:a,b', got %q", v)
	}
	if len(notified) != 1 || len(notified[0]) != 2 {
		t.Errorf("expected one notification of 2 names, got %v", notified)
	}

	s.NotifyVariableChanges()
	if len(notified) != 2 || len(notified[1]) != 0 {
		t.Errorf("expected empty second notification, got %v", notified)
	}
}

func TestStore_HookErrorDoesNotStop(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.DoString(`function on_variables_changed() error("boom") end`)

	notified := 0
	s.OnNotify(func([]string) { notified++ })
	s.Set("x", "1")
	s.NotifyVariableChanges()

	if notified != 1 {
		t.Errorf("expected Go listeners to run, got %d", notified)
	}
}

func TestStore_SendBinding(t *testing.T) {
	sender := &recordingSender{}
	s := NewStore(WithSender(sender))
	defer s.Close()

	s.DoString(`function on_variables_changed() if tonumber(mxp.HP) < 20 then send("flee") end end`)

	s.Set("HP", "50")
	s.NotifyVariableChanges()
	s.Set("HP", "10")
	s.NotifyVariableChanges()

	if len(sender.commands) != 1 || sender.commands[0] != "flee" {
		t.Errorf("expected [flee], got %v", sender.commands)
	}
}

func TestStore_Sandbox(t *testing.T) {
	s := NewStore()
	defer s.Close()

	for _, name := range []string{"os", "io", "dofile", "loadfile", "load", "require", "debug"} {
		code := `mxp.t = type(` + name + `)`
		if err := s.DoString(code); err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if v, _ := s.Get("t"); v != "nil" {
			t.Errorf("expected %s to be nil, got %q", name, v)
		}
	}
}

func TestStore_ScriptError(t *testing.T) {
	s := NewStore()
	defer s.Close()

	err := s.DoString(`error("bad")`)
	if !errors.Is(err, ErrScript) {
		t.Errorf("expected ErrScript, got %v", err)
	}

	// The state is still usable.
	if err := s.DoString(`mxp.ok = "yes"`); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStore_Timeout(t *testing.T) {
	s := NewStore(WithTimeout(50 * time.Millisecond))
	defer s.Close()

	start := time.Now()
	err := s.DoString(`while true do end`)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("expected prompt timeout, took %v", time.Since(start))
	}
}

func TestStore_DoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "init.lua")
	if err := os.WriteFile(path, []byte(`mxp.Greeting = "hello"`), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore()
	defer s.Close()

	if err := s.DoFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := s.Get("Greeting"); v != "hello" {
		t.Errorf("expected 'hello', got %q", v)
	}

	if err := s.DoFile(filepath.Join(dir, "missing.lua")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStore_Closed(t *testing.T) {
	s := NewStore()
	s.Close()

	if err := s.DoString(`x = 1`); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	s.Set("a", "b")
	if _, ok := s.Get("a"); ok {
		t.Error("expected closed store to ignore writes")
	}
	if err := s.Close(); err != nil {
		t.Errorf("expected idempotent close, got %v", err)
	}
}
