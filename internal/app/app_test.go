package app

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/mudstream/internal/config"
	"github.com/dshills/mudstream/internal/render"
	"github.com/dshills/mudstream/internal/session"
	"github.com/dshills/mudstream/internal/telnet"
)

const testConfig = `
[display]
defaultFg = "green-low"
mouse = false

[mxp]
clientName = "mudstream-test"
`

func newTestApp(t *testing.T) *Application {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	app, err := New(Options{
		ConfigPath: path,
		Screen:     tcell.NewSimulationScreen("UTF-8"),
		LogOutput:  io.Discard,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

// connect points app at a local server and returns the server side.
func connect(t *testing.T, app *Application) net.Conn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	app.cfg.Connection.Host = host
	app.cfg.Connection.Port, _ = strconv.Atoi(port)
	if err := app.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case c := <-accepted:
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("server did not accept")
	}
	return nil
}

func key(k tcell.Key, r rune) *tcell.EventKey {
	return tcell.NewEventKey(k, r, tcell.ModNone)
}

func typeLine(t *testing.T, app *Application, line string) error {
	t.Helper()
	for _, r := range line {
		if err := app.handleScreenEvent(key(tcell.KeyRune, r)); err != nil {
			t.Fatalf("unexpected error typing %q: %v", r, err)
		}
	}
	return app.handleScreenEvent(key(tcell.KeyEnter, 0))
}

func TestNew(t *testing.T) {
	app := newTestApp(t)

	if app.Config().MXP.ClientName != "mudstream-test" {
		t.Errorf("expected client name from file, got %q", app.Config().MXP.ClientName)
	}
	if app.Buffer() == nil || app.Interpreter() == nil || app.Variables() == nil {
		t.Fatal("expected pipeline components")
	}
	if n := app.EventBus().Count(); n != len(app.subs) || n == 0 {
		t.Errorf("expected %d subscriptions on the bus, got %d", len(app.subs), n)
	}
	if app.IsRunning() {
		t.Error("expected not running before Run")
	}
	fg, _ := app.Buffer().DefaultColors()
	if fg != "green-low" {
		t.Errorf("expected default fg 'green-low', got %q", fg)
	}
}

func TestNewInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[connection]\nport = 70000\n"), 0o644)

	_, err := New(Options{ConfigPath: path, Screen: tcell.NewSimulationScreen("UTF-8"), LogOutput: io.Discard})
	var initErr *InitError
	if !errors.As(err, &initErr) || initErr.Component != "config" {
		t.Fatalf("expected config InitError, got %v", err)
	}
}

func TestOptionsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte(testConfig), 0o644)

	app, err := New(Options{
		ConfigPath: path,
		Host:       "mud.example.org",
		Port:       4000,
		NoMXP:      true,
		LogLevel:   "debug",
		Screen:     tcell.NewSimulationScreen("UTF-8"),
		LogOutput:  io.Discard,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	cfg := app.Config()
	if cfg.Addr() != "mud.example.org:4000" {
		t.Errorf("expected overridden address, got %q", cfg.Addr())
	}
	if cfg.MXP.Enabled {
		t.Error("expected MXP disabled by NoMXP")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level 'debug', got %q", cfg.Logging.Level)
	}
}

func TestSubmitOffline(t *testing.T) {
	app := newTestApp(t)

	if err := typeLine(t, app, "look"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if app.view.Input() != "" {
		t.Errorf("expected input cleared, got %q", app.view.Input())
	}
}

func TestSubmitSendsAndEchoes(t *testing.T) {
	app := newTestApp(t)
	server := connect(t, app)
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(server)

	if err := typeLine(t, app, "look"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if line != "look\r\n" {
		t.Errorf("expected 'look\\r\\n', got %q", line)
	}
	if !strings.Contains(app.Buffer().Text(), "look") {
		t.Errorf("expected local echo, got %q", app.Buffer().Text())
	}
	if s := app.Metrics().Snapshot(); s.CommandCount != 1 || s.BytesOut != 6 {
		t.Errorf("expected 1 command of 6 bytes, got %d/%d", s.CommandCount, s.BytesOut)
	}

	app.handleSignal(telnet.SignalEchoOn)
	if err := app.submit("hunter2"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if line, _ := r.ReadString('\n'); line != "hunter2\r\n" {
		t.Errorf("expected 'hunter2\\r\\n', got %q", line)
	}
	if strings.Contains(app.Buffer().Text(), "hunter2") {
		t.Error("expected no local echo while the server echoes")
	}
}

func TestDisconnectResetsState(t *testing.T) {
	app := newTestApp(t)
	connect(t, app)
	app.decoder.SetMarkup(true)
	app.handleSignal(telnet.SignalEchoOn)

	if err := app.runCommand("/disconnect"); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if app.session != nil {
		t.Error("expected no session")
	}
	if app.decoder.Markup() {
		t.Error("expected markup off after disconnect")
	}
	if app.serverEcho {
		t.Error("expected server echo cleared")
	}
	if !strings.Contains(app.Buffer().Text(), "[disconnected from ") {
		t.Errorf("expected disconnect notice, got %q", app.Buffer().Text())
	}
	if err := app.runCommand("/disconnect"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestHandleMessageSendLink(t *testing.T) {
	app := newTestApp(t)
	app.handleSignal(telnet.SignalMarkupOn)
	if !app.decoder.Markup() {
		t.Fatal("expected markup on")
	}

	app.handleMessage(session.Message{Data: []byte("You see a <send href=\"get sword\">sword</send>.\n")})

	lines := app.Buffer().Lines(0)
	if got := lines[0].String(); got != "You see a sword." {
		t.Fatalf("expected decoded line, got %q", got)
	}
	var link *render.Send
	for _, run := range lines[0].Runs {
		if s, ok := run.Element.(*render.Send); ok {
			link = s
		}
	}
	if link == nil {
		t.Fatal("expected a send link on the line")
	}
	if link.Commands[0] != "get sword" {
		t.Errorf("expected command 'get sword', got %q", link.Commands[0])
	}

	// Offline the command is only echoed.
	link.Activate(0)
	if !strings.Contains(app.Buffer().Text(), "get sword") {
		t.Errorf("expected echoed command, got %q", app.Buffer().Text())
	}

	if s := app.Metrics().Snapshot(); s.ChunkCount != 1 {
		t.Errorf("expected 1 chunk recorded, got %d", s.ChunkCount)
	}
}

func TestHandleSignal(t *testing.T) {
	tests := []struct {
		name       string
		mxp        bool
		signals    []telnet.Signal
		wantMarkup bool
		wantEcho   bool
	}{
		{"markup on", true, []telnet.Signal{telnet.SignalMarkupOn}, true, false},
		{"markup refused by config", false, []telnet.Signal{telnet.SignalMarkupOn}, false, false},
		{"markup on then off", true, []telnet.Signal{telnet.SignalMarkupOn, telnet.SignalMarkupOff}, false, false},
		{"echo on", true, []telnet.Signal{telnet.SignalEchoOn}, false, true},
		{"echo on then off", true, []telnet.Signal{telnet.SignalEchoOn, telnet.SignalEchoOff}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			app.cfg.MXP.Enabled = tt.mxp
			for _, sig := range tt.signals {
				app.handleSignal(sig)
			}
			if app.decoder.Markup() != tt.wantMarkup {
				t.Errorf("expected markup %v, got %v", tt.wantMarkup, app.decoder.Markup())
			}
			if app.serverEcho != tt.wantEcho {
				t.Errorf("expected server echo %v, got %v", tt.wantEcho, app.serverEcho)
			}
		})
	}
}

func TestRunCommand(t *testing.T) {
	app := newTestApp(t)

	if err := app.runCommand("/quit"); !errors.Is(err, ErrQuit) {
		t.Errorf("expected ErrQuit, got %v", err)
	}
	if err := app.runCommand("/frobnicate now"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
	if err := app.runCommand("/connect localhost notaport"); err == nil {
		t.Error("expected error for invalid port")
	}
	if err := app.runCommand("/connect"); err == nil {
		t.Error("expected usage error without a host")
	}
}

func TestRunCommandLuaAndVars(t *testing.T) {
	app := newTestApp(t)

	if err := app.runCommand("/vars"); err != nil {
		t.Fatalf("vars failed: %v", err)
	}
	if !strings.Contains(app.Buffer().Text(), "[no variables]") {
		t.Errorf("expected empty notice, got %q", app.Buffer().Text())
	}

	if err := app.runCommand(`/lua mxp.hp = "42"; mxp.sp = "7"`); err != nil {
		t.Fatalf("lua failed: %v", err)
	}
	if v, ok := app.Variables().Get("hp"); !ok || v != "42" {
		t.Errorf("expected hp=42, got %q %v", v, ok)
	}

	if err := app.runCommand("/VARS"); err != nil {
		t.Fatalf("vars failed: %v", err)
	}
	text := app.Buffer().Text()
	hp := strings.Index(text, "[hp = 42]")
	sp := strings.Index(text, "[sp = 7]")
	if hp < 0 || sp < 0 || hp > sp {
		t.Errorf("expected sorted variable notices, got %q", text)
	}

	if err := app.runCommand("/lua this is not lua"); err == nil {
		t.Error("expected script error")
	}
}

func TestRunCommandElements(t *testing.T) {
	app := newTestApp(t)
	app.handleSignal(telnet.SignalMarkupOn)
	app.handleMessage(session.Message{Data: []byte("<!ELEMENT RName '<b>' FLAG='RoomName'>\n")})

	if err := app.runCommand("/elements"); err != nil {
		t.Fatalf("elements failed: %v", err)
	}
	if !strings.Contains(strings.ToLower(app.Buffer().Text()), "rname") {
		t.Errorf("expected declared element listed, got %q", app.Buffer().Text())
	}
}

func TestHandleScreenEvent(t *testing.T) {
	app := newTestApp(t)

	if err := app.handleScreenEvent(key(tcell.KeyCtrlC, 0)); !errors.Is(err, ErrQuit) {
		t.Errorf("expected ErrQuit on Ctrl-C, got %v", err)
	}

	app.flash = "stale"
	app.handleScreenEvent(key(tcell.KeyRune, 'x'))
	if app.flash != "" {
		t.Error("expected flash cleared by key press")
	}
	if app.view.Input() != "x" {
		t.Errorf("expected input 'x', got %q", app.view.Input())
	}

	if err := app.handleScreenEvent(tcell.NewEventMouse(0, 0, tcell.WheelUp, tcell.ModNone)); err != nil {
		t.Errorf("unexpected error on wheel: %v", err)
	}
}

func TestApplyConfig(t *testing.T) {
	app := newTestApp(t)
	app.handleSignal(telnet.SignalMarkupOn)

	cfg := config.Default()
	cfg.MXP.Enabled = false
	cfg.Display.DefaultFg = "white-high"
	cfg.Display.UTF8 = false
	app.applyConfig(cfg)

	if app.decoder.Markup() {
		t.Error("expected markup off when MXP is disabled")
	}
	if fg, _ := app.Buffer().DefaultColors(); fg != "white-high" {
		t.Errorf("expected default fg 'white-high', got %q", fg)
	}
	if app.Config() != cfg {
		t.Error("expected new config installed")
	}
	if app.flash != "config reloaded" {
		t.Errorf("expected reload flash, got %q", app.flash)
	}

	bad := config.Default()
	bad.Display.DefaultFg = "chartreuse"
	app.applyConfig(bad)
	if app.Config() != cfg {
		t.Error("expected invalid config ignored")
	}
}

func TestStatusLine(t *testing.T) {
	app := newTestApp(t)

	status := app.statusLine()
	if !strings.HasPrefix(status, "offline | ") {
		t.Errorf("expected offline status, got %q", status)
	}
	if strings.Contains(status, "MXP") {
		t.Error("expected no MXP marker")
	}

	app.handleSignal(telnet.SignalMarkupOn)
	app.Variables().Set("hp", "10")
	app.flash = "hello"
	status = app.statusLine()
	for _, want := range []string{"MXP", "0.0 KB", "1 vars", "hello"} {
		if !strings.Contains(status, want) {
			t.Errorf("expected %q in status %q", want, status)
		}
	}
}

func TestRunStopsOnShutdown(t *testing.T) {
	app := newTestApp(t)

	errc := make(chan error, 1)
	go func() { errc <- app.Run(context.Background()) }()
	app.Shutdown()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
	if app.IsRunning() {
		t.Error("expected not running after Run returned")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- app.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !strings.Contains(app.Buffer().Text(), "not connected") {
		t.Errorf("expected offline notice, got %q", app.Buffer().Text())
	}
}

func TestCloseTwice(t *testing.T) {
	app := newTestApp(t)
	if err := app.Close(); err != nil {
		t.Errorf("expected nil error on close, got %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("expected nil error on second close, got %v", err)
	}
}

func TestErrors(t *testing.T) {
	inner := errors.New("boom")

	ie := &InitError{Component: "screen", Err: inner}
	if ie.Error() != "init screen: boom" {
		t.Errorf("unexpected message %q", ie.Error())
	}
	if !errors.Is(ie, inner) {
		t.Error("expected InitError to unwrap")
	}

	tests := []struct {
		err  *ComponentError
		want string
	}{
		{NewComponentError("session", "send", inner), "session: send: boom"},
		{NewComponentError("session", "send", nil), "session: send"},
		{NewComponentError("script", "", inner), "script: boom"},
		{NewComponentError("watcher", "", nil), "watcher"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
	if !errors.Is(NewComponentError("session", "send", inner), inner) {
		t.Error("expected ComponentError to unwrap")
	}
}
