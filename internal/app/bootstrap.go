package app

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/mudstream/internal/config"
	"github.com/dshills/mudstream/internal/config/watcher"
	"github.com/dshills/mudstream/internal/event"
	"github.com/dshills/mudstream/internal/logging"
	"github.com/dshills/mudstream/internal/mxp"
	"github.com/dshills/mudstream/internal/render"
	"github.com/dshills/mudstream/internal/script"
	"github.com/dshills/mudstream/internal/stream"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      app.opts,
		initOrder: make([]string, 0, 8),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"config", b.initConfig},
		{"logging", b.initLogging},
		{"eventbus", b.initEventBus},
		{"script", b.initScript},
		{"pipeline", b.initPipeline},
		{"screen", b.initScreen},
		{"subscriptions", b.initSubscriptions},
		{"watcher", b.initWatcher},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			b.cleanup()
			return err
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	b.app.log.Debug("initialized: %v", b.initOrder)
	return nil
}

// cleanup releases components in reverse initialization order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		switch b.initOrder[i] {
		case "watcher":
			if b.app.watcher != nil {
				_ = b.app.watcher.Close()
			}
		case "script":
			_ = b.app.vars.Close()
		case "logging":
			if b.app.logFile != nil {
				_ = b.app.logFile.Close()
			}
		}
	}
}

// initConfig loads the config file and environment, then applies the
// command-line overrides.
func (b *bootstrapper) initConfig() error {
	path := b.opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}

	if b.opts.Host != "" {
		cfg.Connection.Host = b.opts.Host
	}
	if b.opts.Port != 0 {
		cfg.Connection.Port = b.opts.Port
	}
	if b.opts.LogFile != "" {
		cfg.Logging.File = b.opts.LogFile
	}
	if b.opts.LogLevel != "" {
		cfg.Logging.Level = b.opts.LogLevel
	}
	if b.opts.NoMXP {
		cfg.MXP.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}

	b.app.cfg = cfg
	b.app.cfgPath = path
	return nil
}

// initLogging opens the log file. The terminal belongs to the view, so
// logs never go to stderr while running.
func (b *bootstrapper) initLogging() error {
	out := b.opts.LogOutput
	if out == nil {
		path := b.app.cfg.Logging.File
		if path == "" {
			path = defaultLogPath()
		}
		f, err := logging.OpenFile(path)
		if err != nil {
			return &InitError{Component: "logging", Err: err}
		}
		b.app.logFile = f
		out = f
	}

	cfg := logging.DefaultConfig()
	cfg.Level = b.app.cfg.LogLevel()
	cfg.Output = out
	b.app.log = logging.New(cfg)
	b.app.log.Info("starting, config %s", b.app.cfgPath)
	return nil
}

// defaultLogPath returns $XDG_STATE_HOME/mudstream/mudstream.log, falling
// back to ~/.local/state.
func defaultLogPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "mudstream.log")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "mudstream", "mudstream.log")
}

func (b *bootstrapper) initEventBus() error {
	b.app.bus = event.NewBus(b.app.log)
	b.app.commands = event.NewCommandBus(b.app.bus, "mxp")
	return nil
}

// initScript creates the variable store and runs the init script. A
// failing init script is reported but not fatal.
func (b *bootstrapper) initScript() error {
	cfg := b.app.cfg
	b.app.vars = script.NewStore(
		script.WithSender(b.app.commands),
		script.WithLogger(b.app.log),
		script.WithTimeout(time.Duration(cfg.Scripting.Timeout)),
	)
	if cfg.Scripting.Init != "" {
		if err := b.app.vars.DoFile(cfg.Scripting.Init); err != nil {
			b.app.log.Warn("init script %s: %v", cfg.Scripting.Init, err)
		}
	}
	return nil
}

// initPipeline builds buffer, decoder and interpreter and connects them.
func (b *bootstrapper) initPipeline() error {
	cfg := b.app.cfg
	fg, bg, err := cfg.Colors()
	if err != nil {
		return &InitError{Component: "pipeline", Err: err}
	}

	buf := render.NewBuffer(render.BufferOptions{Scrollback: cfg.Display.Scrollback})
	buf.SetDefaultColors(fg.ID(), bg.ID())

	dec := stream.New(buf, b.app.log)
	dec.Colors().SetDefaults(fg, bg)
	dec.SetUTF8(cfg.Display.UTF8)

	it := mxp.New(buf, b.app.vars, b.app.commands, b.app.log)
	it.SetInjector(dec)
	it.SetPublisher(b.app.bus)
	it.SetImages(cfg.MXP.Images)
	it.SetClientName(cfg.MXP.ClientName)

	dec.SetTagHandler(it)
	dec.SetVariableNotifier(b.app.vars)

	b.app.buffer = buf
	b.app.decoder = dec
	b.app.mxp = it
	return nil
}

func (b *bootstrapper) initScreen() error {
	screen := b.opts.Screen
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return &InitError{Component: "screen", Err: err}
		}
		screen = s
	}
	b.app.screen = screen
	b.app.view = render.NewView(screen, b.app.buffer)
	b.app.view.OnLink(func(href string) {
		b.app.log.Info("link activated: %s", href)
		b.app.flash = "link: " + href
	})
	return nil
}

func (b *bootstrapper) initSubscriptions() error {
	if err := b.app.subscribe(); err != nil {
		return &InitError{Component: "subscriptions", Err: err}
	}
	return nil
}

// initWatcher watches the config file for live reload. Watching is best
// effort; a missing directory only disables reload.
func (b *bootstrapper) initWatcher() error {
	if b.app.cfgPath == "" {
		return nil
	}
	w, err := watcher.New(b.app.cfgPath, watcher.WithLogger(b.app.log))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.app.log.Warn("config reload disabled: %v", err)
		}
		return nil
	}
	b.app.watcher = w
	return nil
}
